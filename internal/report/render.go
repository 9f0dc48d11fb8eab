package report

import "io"

// Renderer serializes a Document into a downloadable artifact.
type Renderer interface {
	Render(w io.Writer, doc Document) error
	ContentType() string
	Extension() string
}
