package domain

// Image is a decoded, displayable picture held in memory for the lifetime of a session.
type Image struct {
	Data   []byte `json:"data"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Size returns the encoded size in bytes.
func (i Image) Size() int64 {
	return int64(len(i.Data))
}

// Upload is a raw user supplied file before validation.
type Upload struct {
	Filename string
	Size     int64
	Data     []byte
}
