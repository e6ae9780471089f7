package torguapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultPageSize is used when the request doesn't set page_size
const DefaultPageSize = 100

// Aux collects what is known about the requested page. Nil fields are unknown.
type Aux struct {
	PageSize    *int
	PageNumber  *int
	RecordCount *int
	PageCount   *int
}

// Links maps link names (self, previous, next) to URLs
type Links map[string]string

// Meta holds the page_count and record_count reported to the client
type Meta map[string]int

// Int returns a pointer to v, for filling Aux
func Int(v int) *int {
	return &v
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}

	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetPageParameters validates page_size and page_number from the request's query parameters.
// page_size defaults to DefaultPageSize and must be at least 1; page_number is optional.
func GetPageParameters(query map[string]string) (Aux, error) {
	aux := Aux{}

	pageSize, ok := query["page_size"]
	if !ok {
		pageSize = strconv.Itoa(DefaultPageSize)
	}

	size, err := strconv.Atoi(pageSize)
	if !isNumeric(pageSize) || err != nil || size < 1 {
		return aux, eris.Wrapf(ErrInvalidRequest, "Invalid page_size %s", pageSize)
	}
	aux.PageSize = Int(size)

	if pageNumber, ok := query["page_number"]; ok {
		number, err := strconv.Atoi(pageNumber)
		if !isNumeric(pageNumber) || err != nil {
			return aux, eris.Wrapf(ErrInvalidRequest, "Invalid page_number %s", pageNumber)
		}
		aux.PageNumber = Int(number)
	}

	return aux, nil
}

// CalculatePageCount sets PageCount if both RecordCount and PageSize are known
func CalculatePageCount(aux *Aux) {
	if aux.RecordCount == nil || aux.PageSize == nil || *aux.PageSize < 1 {
		return
	}

	records := *aux.RecordCount
	if records < 1 {
		aux.PageCount = Int(0)
		return
	}
	aux.PageCount = Int((records-1) / *aux.PageSize + 1)
}

// MakeURLBase prefixes path with the API_ROOT environment variable (default "/")
func MakeURLBase(path string) string {
	root := os.Getenv("API_ROOT")
	if root == "" {
		root = "/"
	}

	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + path
}

// MakePageLink builds the URL of a single page
func MakePageLink(baseURL string, pageNumber, pageSize int) string {
	return fmt.Sprintf("%s?page_number=%d&page_size=%d", baseURL, pageNumber, pageSize)
}

// MakePageLinks returns the self link and, if the page count is known, the previous and next links
func MakePageLinks(aux Aux, urlBase string) (Links, error) {
	links := Links{}
	if aux.PageNumber == nil {
		links["self"] = urlBase
		return links, nil
	}

	if aux.PageSize == nil {
		return nil, eris.Wrap(ErrTorguapi, "page_size param missing")
	}

	pageNumber := *aux.PageNumber
	pageSize := *aux.PageSize
	links["self"] = MakePageLink(urlBase, pageNumber, pageSize)

	if aux.PageCount != nil {
		if pageNumber > 1 {
			links["previous"] = MakePageLink(urlBase, pageNumber-1, pageSize)
		}
		if pageNumber < *aux.PageCount {
			links["next"] = MakePageLink(urlBase, pageNumber+1, pageSize)
		}
	}

	return links, nil
}

// MakeMeta copies page_count and record_count into a Meta
func MakeMeta(aux Aux) Meta {
	meta := Meta{}
	if aux.PageCount != nil {
		meta["page_count"] = *aux.PageCount
	}
	if aux.RecordCount != nil {
		meta["record_count"] = *aux.RecordCount
	}
	return meta
}

// MakeLinksAndMeta computes the page count and returns the links and meta for a reply.
// urlPath is the API path without API_ROOT and without a leading slash, i.e. "foo/bar/1234".
func MakeLinksAndMeta(aux *Aux, urlPath string) (Links, Meta, error) {
	CalculatePageCount(aux)

	links, err := MakePageLinks(*aux, MakeURLBase(urlPath))
	if err != nil {
		return nil, nil, err
	}

	return links, MakeMeta(*aux), nil
}
