package database

import "time"

// FileType distinguishes folders from stored content. Images get the same
// storage treatment as plain files plus background thumbnail generation.
type FileType string

const (
	TypeFolder FileType = "folder"
	TypeFile   FileType = "file"
	TypeImage  FileType = "image"
)

// Valid reports whether t is one of the three known types.
func (t FileType) Valid() bool {
	return t == TypeFolder || t == TypeFile || t == TypeImage
}

// HasContent reports whether records of this type carry blob content.
func (t FileType) HasContent() bool {
	return t == TypeFile || t == TypeImage
}

// ParentID identifies the folder a record lives in. The zero value is the
// root sentinel: records at the top level of a user's tree have no parent.
// Real parent ids are UUIDs, so the sentinel can never collide with one.
type ParentID string

// RootParent marks records with no parent folder.
const RootParent ParentID = ""

// ParseParentID maps the wire representations of root ("" and "0") to the
// sentinel and passes everything else through unchanged.
func ParseParentID(s string) ParentID {
	if s == "" || s == "0" {
		return RootParent
	}
	return ParentID(s)
}

// IsRoot reports whether p is the root sentinel.
func (p ParentID) IsRoot() bool {
	return p == RootParent
}

// String returns the wire representation: "0" for root, the id otherwise.
func (p ParentID) String() string {
	if p.IsRoot() {
		return "0"
	}
	return string(p)
}

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// File is a node in a user's folder tree: a folder, a plain file or an
// image. LocalPath is the blob store path of the content; it is set exactly
// once at creation for files and images and stays empty for folders.
type File struct {
	ID        string
	OwnerID   string
	Name      string
	Type      FileType
	IsPublic  bool
	ParentID  ParentID
	LocalPath string
	CreatedAt time.Time
}
