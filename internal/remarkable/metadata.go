package remarkable

import (
	"encoding/json"
	"strconv"
)

type metadata struct {
	Deleted          bool   `json:"deleted"`
	LastModified     string `json:"lastModified"`
	MetadataModified bool   `json:"metadatamodified"`
	Modified         bool   `json:"modified"`
	Parent           string `json:"parent"`
	Pinned           bool   `json:"pinned"`
	Synced           bool   `json:"synced"`
	Type             string `json:"type"`
	Version          int    `json:"version"`
	VisibleName      string `json:"visibleName"`
}

type content struct {
	ExtraMetadata  map[string]string `json:"extraMetadata"`
	FileType       string            `json:"fileType"`
	FontName       string            `json:"fontName"`
	LastOpenedPage int               `json:"lastOpenedPage"`
	LineHeight     int               `json:"lineHeight"`
	Margins        int               `json:"margins"`
	PageCount      int               `json:"pageCount"`
	TextScale      int               `json:"textScale"`
	Transform      map[string]string `json:"transform"`
}

// metadataJSON builds the .metadata file. Documents are pinned so they
// land in the tablet's favourites.
func metadataJSON(doc Document) ([]byte, error) {
	return json.Marshal(metadata{
		LastModified: strconv.FormatInt(doc.Modified.UnixMilli(), 10),
		Pinned:       true,
		Synced:       true,
		Type:         "DocumentType",
		Version:      1,
		VisibleName:  doc.VisibleName,
	})
}

func contentJSON(pageCount int) ([]byte, error) {
	return json.Marshal(content{
		ExtraMetadata: map[string]string{},
		FileType:      "pdf",
		LineHeight:    -1,
		Margins:       100,
		PageCount:     pageCount,
		TextScale:     1,
		Transform:     map[string]string{},
	})
}
