package model

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxDocumentBytes is the largest accepted document upload (25 MB).
const MaxDocumentBytes = 25 << 20

// DocumentKind is the declared format of a document input or record.
type DocumentKind string

const (
	KindPDF       DocumentKind = "pdf"
	KindSlideDeck DocumentKind = "slide_deck"
	KindWebsite   DocumentKind = "website"
	KindProfile   DocumentKind = "profile"
	KindText      DocumentKind = "text"
)

// KindFromFilename maps a file extension to a document kind. It returns ""
// for unsupported extensions, including legacy binary .ppt decks, which no
// strategy can read.
func KindFromFilename(name string) DocumentKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".pptx":
		return KindSlideDeck
	default:
		return ""
	}
}

// DocumentInput is an uploaded document with its declared kind.
type DocumentInput struct {
	Filename string       `json:"filename"`
	Kind     DocumentKind `json:"kind"`
	Data     []byte       `json:"-"`
}

// InputSet is everything a caller submitted about one company. At least one
// of Document, WebsiteURL, ProfileURL or Text must be usable.
type InputSet struct {
	Document     *DocumentInput `json:"document,omitempty"`
	WebsiteURL   string         `json:"website_url,omitempty"`
	ProfileURL   string         `json:"profile_url,omitempty"`
	Text         string         `json:"text,omitempty"`
	NameOverride string         `json:"name_override,omitempty"`
}

// HasDocument reports whether a non-empty document was supplied.
func (in InputSet) HasDocument() bool {
	return in.Document != nil && len(in.Document.Data) > 0
}

// HasText reports whether raw text was supplied.
func (in InputSet) HasText() bool {
	return strings.TrimSpace(in.Text) != ""
}

// Validate checks the submission constraints. It returns an
// *InsufficientInputError when nothing usable was supplied and wraps
// ErrInvalidInput for constraint violations.
func (in InputSet) Validate() error {
	if !in.HasDocument() && in.WebsiteURL == "" && in.ProfileURL == "" && !in.HasText() {
		return &InsufficientInputError{Reason: "no document, website, profile or text supplied"}
	}

	if in.HasDocument() {
		doc := in.Document
		if doc.Kind != KindPDF && doc.Kind != KindSlideDeck {
			return eris.Wrapf(ErrInvalidInput, "document kind %q is not pdf or slide_deck", doc.Kind)
		}
		if len(doc.Data) > MaxDocumentBytes {
			return eris.Wrapf(ErrInvalidInput, "document is %d bytes, limit is %d", len(doc.Data), MaxDocumentBytes)
		}
	}

	if in.WebsiteURL != "" && !wellFormedURL(in.WebsiteURL) {
		return eris.Wrapf(ErrInvalidInput, "website url %q is malformed", in.WebsiteURL)
	}
	if in.ProfileURL != "" && !wellFormedURL(in.ProfileURL) {
		return eris.Wrapf(ErrInvalidInput, "profile url %q is malformed", in.ProfileURL)
	}

	return nil
}

// PrimaryKind picks the kind recorded on the Document record for this input
// set: the uploaded document wins, then website, profile and text.
func (in InputSet) PrimaryKind() DocumentKind {
	switch {
	case in.HasDocument():
		return in.Document.Kind
	case in.WebsiteURL != "":
		return KindWebsite
	case in.ProfileURL != "":
		return KindProfile
	default:
		return KindText
	}
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
