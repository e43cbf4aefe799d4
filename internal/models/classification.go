package models

// Classification is one entry of the external production-classification feed.
type Classification struct {
	Description string `json:"description"`
	Color       string `json:"color"`
	Code        int    `json:"code"`
	Running     bool   `json:"running"`
}

// ClassificationMap is keyed by the upper-cased external machine id.
type ClassificationMap map[string]Classification
