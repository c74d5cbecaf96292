package models

// MessageBody is the wire shape carried by a queue message.
type MessageBody struct {
	JobID       string `json:"job_id"`
	Fingerprint string `json:"fingerprint"`
	FileName    string `json:"file_name"`
	FileContent []byte `json:"file_content"`
}

// QueueMessage is a message received from the transport, paired with
// its receipt handle and delivery metadata.
type QueueMessage struct {
	ID           string
	Receipt      string
	Body         MessageBody
	ReceiveCount int
}
