package message

// Type tags the payload variant of a message.
type Type string

const (
	TypeText     Type = "text"
	TypeImage    Type = "image"
	TypeVideo    Type = "video"
	TypeAudio    Type = "audio"
	TypeVoice    Type = "voice"
	TypeDocument Type = "document"
)

// Content is the type-specific payload. The set of implementations is closed.
type Content interface {
	Type() Type
	content()
}

// Text is a plain text message.
type Text struct {
	Body string
}

// Image is a picture with an optional caption. URI is empty until the
// upload finishes.
type Image struct {
	URI     string
	Caption string
}

// Video is a video with an optional caption.
type Video struct {
	URI     string
	Caption string
}

// Audio is a titled audio file.
type Audio struct {
	Title string
	URI   string
}

// Voice is a recorded voice note.
type Voice struct {
	URI string
}

// Document is a titled file attachment.
type Document struct {
	Title string
	URI   string
}

func (Text) Type() Type     { return TypeText }
func (Image) Type() Type    { return TypeImage }
func (Video) Type() Type    { return TypeVideo }
func (Audio) Type() Type    { return TypeAudio }
func (Voice) Type() Type    { return TypeVoice }
func (Document) Type() Type { return TypeDocument }

func (Text) content()     {}
func (Image) content()    {}
func (Video) content()    {}
func (Audio) content()    {}
func (Voice) content()    {}
func (Document) content() {}

// MediaURI returns the upload URI of image and video content.
func MediaURI(c Content) (string, bool) {
	switch v := c.(type) {
	case Image:
		return v.URI, true
	case Video:
		return v.URI, true
	default:
		return "", false
	}
}
