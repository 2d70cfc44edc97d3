package engine

// NewTextLayer returns a TextLayer backed by an in-memory string, for engines
// that extract text eagerly.
func NewTextLayer(text string) TextLayer {
	return &textLayer{text: text}
}

// NewLinkList returns a LinkList backed by a slice.
func NewLinkList(links []Link) LinkList {
	return &linkList{links: links}
}

type textLayer struct {
	text string
}

func (t *textLayer) Text() string { return t.text }
func (t *textLayer) Close() error { t.text = ""; return nil }

type linkList struct {
	links []Link
}

func (l *linkList) Links() []Link { return l.links }
func (l *linkList) Close() error  { l.links = nil; return nil }
