package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"
	"github.com/rs/zerolog/log"

	"chatapp/internal/chat"
)

const (
	nameView     = "name"
	nameErrView  = "name-error"
	messagesView = "messages"
	typingView   = "typing"
	inputView    = "input"
	statusView   = "status"
)

type ChatUI struct {
	gui     *gocui.Gui
	session *chat.Session
	status  string
}

func NewChatUI() (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}
	g.Cursor = true

	ui := &ChatUI{gui: g}
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

// Attach binds the session rendered by this UI. It must be called before Run.
func (ui *ChatUI) Attach(s *chat.Session) {
	ui.session = s
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if ui.session.State() == chat.AwaitingName {
		return ui.layoutGate(g, maxX, maxY)
	}

	for _, name := range []string{nameView, nameErrView} {
		if err := g.DeleteView(name); err != nil && err != gocui.ErrUnknownView {
			return err
		}
	}

	if v, err := g.SetView(messagesView, 0, 0, maxX-1, maxY-7); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Mensajes"
		v.Wrap = true
		v.Autoscroll = true
		ui.renderMessages(v)
	}

	if v, err := g.SetView(typingView, 0, maxY-6, maxX-1, maxY-4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.FgColor = gocui.ColorYellow
	}

	if v, err := g.SetView(inputView, 0, maxY-4, maxX-1, maxY-2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Escribe tu mensaje"
		v.Editable = true
		v.Editor = gocui.EditorFunc(ui.messageEditor)
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	return ui.layoutStatus(g, maxX, maxY)
}

func (ui *ChatUI) layoutGate(g *gocui.Gui, maxX, maxY int) error {
	x0, x1 := maxX/2-25, maxX/2+25
	y0 := maxY/2 - 2

	if v, err := g.SetView(nameView, x0, y0, x1, y0+2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Ingresa tu nombre"
		v.Editable = true
		v.Editor = gocui.EditorFunc(ui.nameEditor)
		if _, err := g.SetCurrentView(nameView); err != nil {
			return err
		}
	}

	if ui.session.NameValid() {
		if err := g.DeleteView(nameErrView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
	} else if v, err := g.SetView(nameErrView, x0, y0+3, x1, y0+5); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.FgColor = gocui.ColorRed
		fmt.Fprint(v, chat.NameErrorText)
	}

	return ui.layoutStatus(g, maxX, maxY)
}

func (ui *ChatUI) layoutStatus(g *gocui.Gui, maxX, maxY int) error {
	v, err := g.SetView(statusView, 0, maxY-2, maxX-1, maxY)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Frame = false
	v.Clear()
	fmt.Fprint(v, ui.status)
	return nil
}

func (ui *ChatUI) nameEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	gocui.DefaultEditor.Edit(v, key, ch, mod)
	ui.session.SetName(viewText(v))
}

// messageEditor emits a typing event for every key that inserts a character.
func (ui *ChatUI) messageEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	gocui.DefaultEditor.Edit(v, key, ch, mod)
	if ch != 0 || key == gocui.KeySpace {
		if err := ui.session.KeyPress(); err != nil {
			log.Debug().Err(err).Msg("[Chat] typing event failed")
		}
	}
}

func (ui *ChatUI) submitName(g *gocui.Gui, v *gocui.View) error {
	err := ui.session.SubmitName(viewText(v))
	switch {
	case err == nil:
		ui.status = "Conectado como " + ui.session.Name() + " | Ctrl-C: salir"
	case errors.Is(err, chat.ErrInvalidName):
		// the gate re-renders with the validation message
	default:
		ui.status = "Error: " + err.Error()
	}
	return nil
}

func (ui *ChatUI) sendMessage(_ *gocui.Gui, v *gocui.View) error {
	sent, err := ui.session.Send(viewText(v))
	if err != nil {
		ui.status = "Error: " + err.Error()
		return nil
	}
	if sent {
		v.Clear()
		v.SetCursor(0, 0)
		v.SetOrigin(0, 0)
	}
	return nil
}

// refresh re-renders session state; it is the session's change callback.
func (ui *ChatUI) refresh() {
	ui.gui.Update(func(g *gocui.Gui) error {
		if v, err := g.View(messagesView); err == nil {
			ui.renderMessages(v)
		}
		if v, err := g.View(typingView); err == nil {
			v.Clear()
			fmt.Fprint(v, ui.session.Typing())
		}
		return nil
	})
}

func (ui *ChatUI) setStatus(status string) {
	ui.gui.Update(func(*gocui.Gui) error {
		ui.status = status
		return nil
	})
}

func (ui *ChatUI) renderMessages(v *gocui.View) {
	v.Clear()
	for _, m := range ui.session.Messages() {
		fmt.Fprintln(v, formatMessage(m))
	}
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(*gocui.Gui, *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := ui.gui.SetKeybinding(nameView, gocui.KeyEnter, gocui.ModNone, ui.submitName); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.sendMessage)
}

func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func (ui *ChatUI) Close() {
	ui.gui.Close()
}

// formatMessage renders one list entry as a terminal line.
func formatMessage(m chat.Message) string {
	switch m.From {
	case chat.OriginSelf:
		return fmt.Sprintf("%s > %s", m.Timestamp, m.Text)
	case chat.OriginSystem:
		return fmt.Sprintf("%s * %s", m.Timestamp, m.Text)
	default:
		return fmt.Sprintf("%s (%s) %s", m.Timestamp, chat.Initials(m.Name), m.Text)
	}
}

func viewText(v *gocui.View) string {
	return strings.TrimSuffix(v.Buffer(), "\n")
}
