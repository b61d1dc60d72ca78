package api

// GraphQL documents sent to the bookmarks API. They mirror the schema the
// backend stack deploys and must stay in sync with it.
const (
	BookmarksQuery = `query Bookmarks {
  bookmarks {
    id
    title
    url
  }
}`

	CreateBookmarkMutation = `mutation CreateBookmark($title: String!, $url: String!) {
  createBookmark(title: $title, url: $url) {
    id
    title
    url
  }
}`

	EditBookmarkMutation = `mutation EditBookmark($id: ID!, $title: String!, $url: String!) {
  editBookmark(id: $id, title: $title, url: $url) {
    id
    title
    url
  }
}`

	DeleteBookmarkMutation = `mutation DeleteBookmark($id: ID!) {
  deleteBookmark(id: $id) {
    id
  }
}`

	BatchDeleteBookmarksMutation = `mutation BatchDeleteBookmarks($ids: [ID!]!) {
  batchDeleteBookmarks(ids: $ids) {
    id
  }
}`

	OnCreateBookmarkSubscription = `subscription OnCreateBookmark {
  onCreateBookmark {
    id
    title
    url
  }
}`

	OnEditBookmarkSubscription = `subscription OnEditBookmark {
  onEditBookmark {
    id
    title
    url
  }
}`

	OnDeleteBookmarkSubscription = `subscription OnDeleteBookmark {
  onDeleteBookmark {
    id
  }
}`

	OnBatchDeleteBookmarksSubscription = `subscription OnBatchDeleteBookmarks {
  onBatchDeleteBookmarks {
    id
  }
}`
)
