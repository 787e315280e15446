package ticket

// Kind classifies a history item as returned by the ticketing backend.
type Kind string

const (
	KindMessage Kind = "message" // correspondence
	KindStatus  Kind = "status"  // status change, content is the description
	KindComment Kind = "comment" // internal comment (bots write these)
	KindCreate  Kind = "create"  // ticket creation
	KindOther   Kind = "other"
)

// Attachment is one attachment reference on a history item.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	// Unresolved is set when the attachment metadata could not be fetched.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Item is one record in a ticket's history.
type Item struct {
	Description string       `json:"description"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Kind        Kind         `json:"kind,omitempty"`
	Creator     string       `json:"creator,omitempty"`
}

// Ticket is an ordered history for one ticket id.
type Ticket struct {
	ID       string `json:"id"`
	Items    []Item `json:"items"`
	Queue    string `json:"queue,omitempty"`
	Category string `json:"category,omitempty"`
}

// Speaker tags a cleaned turn.
type Speaker string

const (
	Human     Speaker = "Human"
	Assistant Speaker = "Assistant"
)

// Turn is one cleaned, speaker-tagged block of text.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Rejected is the fixed negative response attached to every pair.
const Rejected = " Please submit a ticket through the portal: https://tacc.utexas.edu/portal/dashboard. "

// Pair is a single preference-training example.
type Pair struct {
	Prompt   string `json:"prompt"`
	Chosen   string `json:"chosen"`
	Rejected string `json:"rejected"`
	Category string `json:"category,omitempty"`
	Queue    string `json:"queue,omitempty"`

	// TicketID records provenance; it is not part of the exported record.
	TicketID string `json:"-"`
}
