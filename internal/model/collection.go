package model

// Collection holds the client-side list of bookmarks, in the order the server
// returned them on the last full fetch with newer creations prepended.
// It trusts the server for uniqueness and keeps no secondary indexes.
type Collection struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

// NewCollection creates an empty Collection with an initialized slice.
func NewCollection() *Collection {
	return &Collection{
		Bookmarks: []Bookmark{},
	}
}

// Len returns the number of bookmarks.
func (c *Collection) Len() int {
	return len(c.Bookmarks)
}

// Replace swaps the whole collection for the given bookmarks.
func (c *Collection) Replace(bookmarks []Bookmark) {
	c.Bookmarks = append(make([]Bookmark, 0, len(bookmarks)), bookmarks...)
}

// Prepend inserts b at the front. Duplicate ids are not checked.
func (c *Collection) Prepend(b Bookmark) {
	c.Bookmarks = append([]Bookmark{b}, c.Bookmarks...)
}

// Overwrite replaces title and url of every bookmark with b's id.
// Returns false when no local bookmark matched, in which case nothing changes.
func (c *Collection) Overwrite(b Bookmark) bool {
	found := false
	for i := range c.Bookmarks {
		if c.Bookmarks[i].ID == b.ID {
			c.Bookmarks[i].Title = b.Title
			c.Bookmarks[i].URL = b.URL
			found = true
		}
	}
	return found
}

// Remove drops every bookmark with the given id and reports how many went.
func (c *Collection) Remove(id string) int {
	return c.RemoveAll([]string{id})
}

// RemoveAll drops every bookmark whose id is in ids.
func (c *Collection) RemoveAll(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := c.Bookmarks[:0]
	removed := 0
	for _, b := range c.Bookmarks {
		if drop[b.ID] {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	c.Bookmarks = kept
	return removed
}

// GetBookmarkByID finds a bookmark by ID, returns nil if not found.
func (c *Collection) GetBookmarkByID(id string) *Bookmark {
	for i := range c.Bookmarks {
		if c.Bookmarks[i].ID == id {
			return &c.Bookmarks[i]
		}
	}
	return nil
}

// HasBookmarkURL checks if a bookmark with the given URL exists.
func (c *Collection) HasBookmarkURL(url string) bool {
	for _, b := range c.Bookmarks {
		if b.URL == url {
			return true
		}
	}
	return false
}

// Clone returns a copy of the bookmarks that callers may keep.
func (c *Collection) Clone() []Bookmark {
	out := make([]Bookmark, len(c.Bookmarks))
	copy(out, c.Bookmarks)
	return out
}
