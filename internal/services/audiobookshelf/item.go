package audiobookshelf

import "strings"

// Item is the subset of an Audiobookshelf library item the reconciler needs.
type Item struct {
	ID        string       `json:"id"`
	MediaType string       `json:"mediaType"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Name      string       `json:"name"`
	RelPath   string       `json:"relPath"`
	Authors   []ItemAuthor `json:"authors"`
	Media     ItemMedia    `json:"media"`
}

// ItemAuthor is a structured author reference on a library item.
type ItemAuthor struct {
	Name string `json:"name"`
}

// ItemMedia carries the media block of a library item.
type ItemMedia struct {
	Metadata ItemMetadata `json:"metadata"`
}

// ItemMetadata is the metadata block where Audiobookshelf stores the real
// title, author, and narrator fields.
type ItemMetadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"authorName"`
	NarratorName string `json:"narratorName"`
}

// NormalizedItem is a library item reduced to the fields the reconciler
// writes: a display title, author names, narrator names, and the server
// cover URL.
type NormalizedItem struct {
	Title     string
	Authors   []string
	Narrators []string
	CoverURL  string
}

// Normalize reduces a raw item to reconciler inputs. Title comes from
// media metadata first, then from the item itself. Authors come from the
// structured author list, then the metadata authorName field, then from a
// folder named "Author - Title". Items with no resolvable title or author
// yield a NormalizedItem with the missing field empty; the caller skips
// those.
func (c *Client) Normalize(item Item) NormalizedItem {
	meta := item.Media.Metadata

	title := meta.Title
	if title == "" {
		title = item.Title
	}
	if title == "" {
		title = item.Name
	}

	var authors []string
	for _, a := range item.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) == 0 && meta.AuthorName != "" {
		authors = splitNames(meta.AuthorName)
	}
	if len(authors) == 0 {
		if author, _, ok := strings.Cut(item.RelPath, " - "); ok {
			if author = strings.TrimSpace(author); author != "" {
				authors = append(authors, author)
			}
		}
	}

	var narrators []string
	if meta.NarratorName != "" {
		narrators = splitNames(meta.NarratorName)
	}

	return NormalizedItem{
		Title:     strings.TrimSpace(title),
		Authors:   authors,
		Narrators: narrators,
		CoverURL:  c.CoverURL(item.ID),
	}
}

func splitNames(field string) []string {
	parts := strings.Split(field, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
