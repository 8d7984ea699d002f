package scraper

import (
	"strings"

	"jetpreview/internal/browser"
	"jetpreview/internal/opengraph"
)

// DefaultStrategies is the built-in site list. youtube may be nil, in which
// case YouTube links go through the fallback.
func DefaultStrategies(youtube *YouTubeClient) []Strategy {
	var strategies []Strategy
	if youtube != nil {
		strategies = append(strategies, Strategy{
			Name:     "youtube",
			Priority: 10,
			Mode:     ModeAPI,
			Matches:  Contains("youtube.com", "youtu.be"),
			Call:     youtube.Metadata,
		})
	}
	return append(strategies,
		// og tags are injected by script after load.
		Strategy{
			Name:     "instagram",
			Priority: 20,
			Mode:     ModeRender,
			Matches:  Contains("instagram.com"),
			Wait:     browser.MetaPresent(opengraph.PropertyTitle),
		},
		// The desktop page has no og tags; the mobile page is server rendered.
		Strategy{
			Name:     "naver-blog",
			Priority: 30,
			Mode:     ModeFetch,
			Matches:  Contains("blog.naver.com"),
			Rewrite:  MobileNaverBlog,
		},
		// Posts live inside the cafe_main iframe.
		Strategy{
			Name:     "naver-cafe",
			Priority: 40,
			Mode:     ModeRender,
			Matches:  Contains("cafe.naver.com"),
			Wait:     browser.FrameSwitch("cafe_main"),
		},
		Strategy{
			Name:     "threads",
			Priority: 50,
			Mode:     ModeRender,
			Matches:  Contains("threads.net", "threads.com"),
			Wait:     browser.TitleChanged("Threads"),
		},
		Fallback(),
	)
}

// MobileNaverBlog rewrites blog.naver.com to m.blog.naver.com.
func MobileNaverBlog(url string) string {
	if strings.Contains(url, "://m.blog.naver.com") {
		return url
	}
	return strings.Replace(url, "://blog.naver.com", "://m.blog.naver.com", 1)
}
