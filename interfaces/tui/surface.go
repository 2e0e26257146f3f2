package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aymericbeaumet/loupe/application/view"
)

type sceneMsg view.Scene

type clearMsg struct{}

type highlightMsg struct {
	ids []string
	on  bool
}

type popupOpenMsg struct{ id, content string }

type popupStateMsg struct {
	id      string
	visible bool
	gone    bool
}

type errMsg struct {
	query string
	err   error
}

// surface turns view calls into program messages. View calls happen from
// inside Update too, so emit never blocks: messages are queued and a pump
// delivers them in order. Messages emitted before attach are kept.
type surface struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newSurface() *surface {
	return &surface{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// attach starts delivering messages to send.
func (s *surface) attach(send func(tea.Msg)) {
	go func() {
		for {
			select {
			case <-s.stop:
				return
			case <-s.wake:
			}
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			for _, msg := range batch {
				send(msg)
			}
		}
	}()
	s.signal()
}

func (s *surface) detach() {
	s.once.Do(func() { close(s.stop) })
}

func (s *surface) emit(msg tea.Msg) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	s.signal()
}

func (s *surface) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *surface) Draw(scene view.Scene) error {
	s.emit(sceneMsg(scene))
	return nil
}

func (s *surface) SetHighlighted(ids []string, on bool) {
	s.emit(highlightMsg{ids: append([]string(nil), ids...), on: on})
}

func (s *surface) OpenPopup(id, content string) (view.Popup, error) {
	s.emit(popupOpenMsg{id: id, content: content})
	return &popup{surface: s, id: id}, nil
}

func (s *surface) Clear() {
	s.emit(clearMsg{})
}

type popup struct {
	surface *surface
	id      string
}

func (p *popup) Show()    { p.surface.emit(popupStateMsg{id: p.id, visible: true}) }
func (p *popup) Hide()    { p.surface.emit(popupStateMsg{id: p.id}) }
func (p *popup) Destroy() { p.surface.emit(popupStateMsg{id: p.id, gone: true}) }
