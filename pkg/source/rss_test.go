package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Sportschau</title>
 <author><name>Sportschau</name></author>
 <entry>
  <id>yt:video:DDDDDDDDDDD</id>
  <yt:videoId>DDDDDDDDDDD</yt:videoId>
  <title>Bundesliga: Alle Tore vom Samstag</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=DDDDDDDDDDD"/>
  <published>2026-01-10T09:00:00+00:00</published>
  <media:group>
   <media:title>Bundesliga: Alle Tore vom Samstag</media:title>
   <media:thumbnail url="https://i2.ytimg.com/vi/DDDDDDDDDDD/hqdefault.jpg" width="480" height="360"/>
   <media:description>Die Highlights</media:description>
   <media:community>
    <media:starRating count="1200" average="5.00" min="1" max="5"/>
    <media:statistics views="48000"/>
   </media:community>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:EEEEEEEEEEE</id>
  <yt:videoId>EEEEEEEEEEE</yt:videoId>
  <title>Formel 1 Vorschau</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=EEEEEEEEEEE"/>
  <published>2026-01-10T08:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:FFFFFFFFFFF</id>
  <title>Bundesliga Saisonrückblick</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=FFFFFFFFFFF"/>
  <published>2026-01-01T08:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:GGGGGGGGGGG</id>
  <title>Bundesliga Pressekonferenz</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=GGGGGGGGGGG"/>
  <published>2026-01-10T11:00:00+00:00</published>
 </entry>
</feed>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(channelFeed))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFeeds(channels []ChannelFeed) *Feeds {
	f := NewFeeds(FeedsConfig{Channels: channels, MaxAge: 24 * time.Hour}, logger.NewNop())
	f.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFeeds_Collect(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFeeds([]ChannelFeed{
		{Name: "sportschau", ChannelID: "UCsport", URL: srv.URL + "/ok.xml"},
		{Name: "broken", URL: srv.URL + "/broken.xml"},
	})

	batches, err := f.Collect(context.Background(), Query{Text: "bundesliga", Region: "DE"})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, video.SourceChannelFeed, batches[0].Source)

	recs := batches[0].Videos
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "DDDDDDDDDDD", first.ID)
	assert.Equal(t, "Sportschau", first.Channel)
	assert.Equal(t, "UCsport", first.ChannelID)
	assert.Equal(t, int64(48000), first.Views)
	assert.Equal(t, int64(1200), first.Likes)
	assert.InDelta(t, 3.0, first.AgeHours, 1e-9)
	assert.Equal(t, "https://i2.ytimg.com/vi/DDDDDDDDDDD/hqdefault.jpg", first.Thumbnail)
	assert.False(t, first.TrendingSource)

	// no yt:videoId, id comes from the link
	assert.Equal(t, "GGGGGGGGGGG", recs[1].ID)
	assert.Zero(t, recs[1].Views)
}

func TestFeeds_Limit(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFeeds([]ChannelFeed{{Name: "sportschau", URL: srv.URL + "/ok.xml"}})

	batches, err := f.Collect(context.Background(), Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Videos, 1)
}

func TestFeeds_AllFailed(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFeeds([]ChannelFeed{{Name: "broken", URL: srv.URL + "/broken.xml"}})

	batches, err := f.Collect(context.Background(), Query{Text: "q"})
	assert.Nil(t, batches)
	var ce *CollectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "channel_feeds", ce.Source)
}

func TestChannelFeed_FeedURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml?channel_id=UC123", ChannelFeed{ChannelID: "UC123"}.FeedURL())
	assert.Equal(t, "http://x/feed", ChannelFeed{ChannelID: "UC123", URL: "http://x/feed"}.FeedURL())
}
