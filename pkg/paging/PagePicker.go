package paging

import (
	"math"
	"math/rand/v2"
)

// PageSize is the fixed number of results per remote page.
const PageSize = 25

/*
NextPage decides which remote page to request for an album. A remote
total of zero means the album has never been fetched, so the first
page is requested unconditionally. Otherwise the page is chosen
uniformly at random from the pages the remote reported, so a refresh
surfaces different images instead of re-fetching the same page every
time.
*/
func NextPage(remoteTotal float64) int {
	if remoteTotal <= 0 {
		return 1
	}

	pages := int(math.Ceil(remoteTotal / float64(PageSize)))
	return rand.IntN(pages)
}
