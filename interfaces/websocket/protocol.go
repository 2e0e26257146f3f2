package websocket

import (
	"github.com/aymericbeaumet/loupe/application/view"
)

// Client to server message types.
const (
	TypeQuery      = "query"
	TypeSelect     = "select"
	TypeDeselect   = "deselect"
	TypeHoverEnter = "hover_enter"
	TypeHoverLeave = "hover_leave"
)

// Server to client message types.
const (
	TypeScene        = "scene"
	TypeHighlight    = "highlight"
	TypePopupOpen    = "popup_open"
	TypePopupShow    = "popup_show"
	TypePopupHide    = "popup_hide"
	TypePopupDestroy = "popup_destroy"
	TypeClear        = "clear"
	TypeError        = "error"
)

// Inbound is a message received from the browser.
type Inbound struct {
	Type  string `json:"type" validate:"required,oneof=query select deselect hover_enter hover_leave"`
	Query string `json:"query,omitempty"`
	ID    string `json:"id,omitempty" validate:"required_unless=Type query"`
}

// Outbound is a message sent to the browser.
type Outbound struct {
	Type    string      `json:"type"`
	Scene   *view.Scene `json:"scene,omitempty"`
	IDs     []string    `json:"ids,omitempty"`
	On      bool        `json:"on,omitempty"`
	ID      string      `json:"id,omitempty"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
}
