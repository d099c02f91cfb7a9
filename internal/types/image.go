package types

import (
	"strconv"
	"time"
)

// ImageType tags which gallery an image came from. Its value is part of
// the saved filename.
type ImageType string

const (
	ImageThumbnail ImageType = "thumbnail"
	ImageMain      ImageType = "img"
)

// ImageRef is one image found on a detail page. Index is 1-based and
// follows document order within its gallery.
type ImageRef struct {
	URL   string
	Index int
	Type  ImageType
}

// ImageRecord describes one image written to disk.
type ImageRecord struct {
	RunID       string    `json:"run_id"       bson:"run_id"`
	MetalType   string    `json:"metal_type"   bson:"metal_type"`
	Cut         string    `json:"cut"          bson:"cut"`
	Product     string    `json:"product"      bson:"product"`
	ProductURL  string    `json:"product_url"  bson:"product_url"`
	Type        ImageType `json:"type"         bson:"type"`
	Index       int       `json:"index"        bson:"index"`
	SourceURL   string    `json:"source_url"   bson:"source_url"`
	LocalPath   string    `json:"local_path"   bson:"local_path"`
	Size        int64     `json:"size"         bson:"size"`
	SHA256      string    `json:"sha256"       bson:"sha256"`
	ContentType string    `json:"content_type" bson:"content_type"`
	SavedAt     time.Time `json:"saved_at"     bson:"saved_at"`
}

// CSVHeader is the column order used by ToRow.
var CSVHeader = []string{
	"run_id", "metal_type", "cut", "product", "product_url", "type", "index",
	"source_url", "local_path", "size", "sha256", "content_type", "saved_at",
}

// ToRow returns the record as a CSV row matching CSVHeader.
func (r *ImageRecord) ToRow() []string {
	return []string{
		r.RunID,
		r.MetalType,
		r.Cut,
		r.Product,
		r.ProductURL,
		string(r.Type),
		strconv.Itoa(r.Index),
		r.SourceURL,
		r.LocalPath,
		strconv.FormatInt(r.Size, 10),
		r.SHA256,
		r.ContentType,
		r.SavedAt.Format(time.RFC3339),
	}
}
