// Package services defines the [Searcher] capability used to resolve tracks and implements it for three providers.
//
// # Providers
//
//   - [PageSearcher] : loads the YouTube results page in a rendering session and reads the first video link
//   - [ProxySearcher] : calls the ytmusicapi FastAPI proxy (GET /api/search?filter=videos)
//   - [DataAPISearcher] : calls YouTube Data API v3 search.list with an API key
//
// All providers return only the first hit. A completed search without a hit is not an error: it reports ok == false.
//
// # Error Handling
//
// Providers use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a non-2xx status
//   - [shared.ErrMissingCredentials] : the data API key is not configured
//   - [shared.ErrNavigation] : the results page could not be loaded
package services
