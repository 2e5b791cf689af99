// package scraper acquires Beatport chart pages and parses them into source
// playlists.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/net/html"
)

// Scraper turns a chart URL into a parsed source playlist.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.SourcePlaylist, error)
}

// Beatport's build pipeline suffixes class names with content hashes, so
// selectors match on the stable prefix.
const (
	trackItemTestID   = "tracks-list-item"
	trackTitlePrefix  = "TracksList-style__TrackName"
	artistNamesPrefix = "ArtistNames"
	chartTitlePrefix  = "TitleControls-style__PreText"
)

// BeatportScraper implements [Scraper] for Beatport top-100 chart pages.
type BeatportScraper struct {
	httpClient *http.Client
	logger     *log.Logger
}

var _ Scraper = (*BeatportScraper)(nil)

// NewBeatportScraper creates a scraper with the given HTTP client.
func NewBeatportScraper(httpClient *http.Client, logger *log.Logger) *BeatportScraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BeatportScraper{httpClient: httpClient, logger: logger}
}

// Scrape fetches and parses one chart page.
func (s *BeatportScraper) Scrape(ctx context.Context, url string) (*models.SourcePlaylist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrScrapeFailed, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrScrapeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d for %s", shared.ErrScrapeFailed, resp.StatusCode, url)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrScrapeFailed, err)
	}

	playlist, err := Parse(doc, url)
	if err != nil {
		return nil, err
	}

	s.logger.Info("parsed chart", "url", url, "title", playlist.Title, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// Parse extracts the chart title and ordered track list from a parsed page.
func Parse(doc *html.Node, url string) (*models.SourcePlaylist, error) {
	titleNode := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "div" && hasClassPrefix(n, chartTitlePrefix)
	})
	if titleNode == nil {
		return nil, fmt.Errorf("%w: chart title not found in %s", shared.ErrScrapeFailed, url)
	}
	title := textContent(titleNode) + models.PlaylistTitleSuffix

	var tracks []models.SourceTrack
	for _, item := range findAll(doc, func(n *html.Node) bool {
		return attr(n, "data-testid") == trackItemTestID
	}) {
		track, err := parseTrack(item)
		if err != nil {
			// Malformed rows are skipped; the chart layout ships partial
			// rows for withdrawn releases.
			continue
		}
		tracks = append(tracks, track)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks found in %s", shared.ErrScrapeFailed, url)
	}

	playlist := &models.SourcePlaylist{URL: url, Title: title, Tracks: tracks}
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrScrapeFailed, err)
	}
	return playlist, nil
}

func parseTrack(item *html.Node) (models.SourceTrack, error) {
	titleNode := findFirst(item, func(n *html.Node) bool {
		return n.Data == "span" && hasClassPrefix(n, trackTitlePrefix)
	})
	if titleNode == nil {
		return models.SourceTrack{}, fmt.Errorf("track title not found")
	}

	var artists []string
	artistContainer := findFirst(item, func(n *html.Node) bool {
		return n.Data == "div" && hasClassPrefix(n, artistNamesPrefix)
	})
	if artistContainer != nil {
		for _, anchor := range findAll(artistContainer, func(n *html.Node) bool {
			return n.Data == "a"
		}) {
			if name := textContent(anchor); name != "" {
				artists = append(artists, name)
			}
		}
	}

	track := models.SourceTrack{Artists: artists, Title: textContent(titleNode)}
	if err := track.Validate(); err != nil {
		return models.SourceTrack{}, err
	}
	return track, nil
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && pred(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, pred); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var nodes []*html.Node
	if root.Type == html.ElementNode && pred(root) {
		nodes = append(nodes, root)
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		nodes = append(nodes, findAll(child, pred)...)
	}
	return nodes
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClassPrefix(n *html.Node, prefix string) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(class, prefix) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
