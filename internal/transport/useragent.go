package transport

import "math/rand/v2"

// mobileUserAgents are smartphone and tablet browsers. The catalog serves
// its lightweight mobile layout to these, which is the layout the parsers
// expect.
var mobileUserAgents = []string{
	"Mozilla/5.0 (Linux; Android 13; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.6045.163 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 11; Redmi Note 9 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.5993.111 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 13; SM-X706B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.43 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 10; MediaPad M5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.5938.153 Safari/537.36",
}

// RandomUserAgent picks a mobile or tablet user agent.
// A nil rng uses the global source.
func RandomUserAgent(rng *rand.Rand) string {
	if rng == nil {
		return mobileUserAgents[rand.IntN(len(mobileUserAgents))]
	}
	return mobileUserAgents[rng.IntN(len(mobileUserAgents))]
}
