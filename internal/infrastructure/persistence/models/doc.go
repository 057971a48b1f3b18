// Package models holds the GORM rows behind the domain repositories. Each
// model converts to and from its domain type; the domain packages never see
// gorm tags.
package models
