package collab

import "encoding/json"

// Notification names exchanged with the editor client. The payloads of
// send-changes/receive-changes and save-document are opaque to the server.
const (
	MsgGetDocument    = "get-document"
	MsgLoadDocument   = "load-document"
	MsgSendChanges    = "send-changes"
	MsgReceiveChanges = "receive-changes"
	MsgSaveDocument   = "save-document"
	MsgError          = "error"
)

// Message is the JSON envelope carried on the websocket.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GetDocumentPayload is the client request to join and load a document.
// EditorID is optional; a verified token subject takes precedence over it.
type GetDocumentPayload struct {
	ID       string `json:"id"`
	EditorID string `json:"editorId,omitempty"`
}

// LoadDocumentPayload is the one-shot initial snapshot sent after a join.
type LoadDocumentPayload struct {
	Content interface{} `json:"content"`
	Version int64       `json:"version"`
}

func errorMessage(text string) Message {
	p, _ := json.Marshal(text)
	return Message{Type: MsgError, Payload: p}
}

func loadMessage(content interface{}, version int64) Message {
	p, _ := json.Marshal(LoadDocumentPayload{Content: content, Version: version})
	return Message{Type: MsgLoadDocument, Payload: p}
}
