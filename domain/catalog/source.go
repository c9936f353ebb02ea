package catalog

// SourceRow is one row of the catalog source list: an identifier and the
// remote image to embed for it.
type SourceRow struct {
	position int
	id       string
	imageURL string
	name     string
	number   string
}

// NewSourceRow creates a SourceRow. position is the zero-based row index
// in build order.
func NewSourceRow(position int, id, imageURL, name, number string) SourceRow {
	return SourceRow{
		position: position,
		id:       id,
		imageURL: imageURL,
		name:     name,
		number:   number,
	}
}

// Position returns the zero-based row index in build order.
func (r SourceRow) Position() int { return r.position }

// ID returns the card identifier.
func (r SourceRow) ID() string { return r.id }

// ImageURL returns the remote image URL.
func (r SourceRow) ImageURL() string { return r.imageURL }

// Name returns the card name.
func (r SourceRow) Name() string { return r.name }

// Number returns the card number within its set.
func (r SourceRow) Number() string { return r.number }
