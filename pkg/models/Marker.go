package models

import (
	"fmt"
)

var (
	ErrMarkerNotFound = fmt.Errorf("marker not found")
)

type Marker struct {
	BaseModel

	Latitude  float64
	Longitude float64
}
