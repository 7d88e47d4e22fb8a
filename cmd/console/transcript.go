package main

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type entryKind int

const (
	entryLine entryKind = iota
	entryChoice
	entryNote
	entryWarning
)

type entry struct {
	kind    entryKind
	speaker string
	text    string
}

// transcript collects everything shown in a conversation. It is fed by the game state's event bus.
type transcript struct {
	entries []entry
	titler  cases.Caser
}

func newTranscript() *transcript {
	return &transcript{titler: cases.Title(language.English)}
}

func (t *transcript) add(kind entryKind, speaker, text string) {
	t.entries = append(t.entries, entry{kind: kind, speaker: speaker, text: text})
}

// lastLine returns the index of the most recent spoken line, or -1
func (t *transcript) lastLine() int {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].kind == entryLine {
			return i
		}
	}
	return -1
}

func (t *transcript) speakerName(s string) string {
	if s == "" {
		return ""
	}
	return t.titler.String(s)
}

// onEvent turns bus notifications into transcript entries
func (t *transcript) onEvent(e state.Event) {
	switch e.Type {
	case state.EventNodeDisplayed:
		speaker, _ := e.Data["speaker"].(string)
		text, _ := e.Data["text"].(string)
		t.add(entryLine, t.speakerName(speaker), text)

	case state.EventLoveChanged:
		meter, _ := e.Data["meter"].(string)
		prev, _ := e.Data["previous"].(int)
		cur, _ := e.Data["current"].(int)
		arrow := "♥ +"
		if cur < prev {
			arrow = "♡ "
		}
		t.add(entryNote, "", fmt.Sprintf("%s%d %s (%d → %d)", arrow, cur-prev, t.speakerName(meter), prev, cur))

	case state.EventPreferenceDiscovered:
		bachelor, _ := e.Data["bachelor"].(string)
		desc, _ := e.Data["description"].(string)
		verb := "dislikes"
		if like, _ := e.Data["is_like"].(bool); like {
			verb = "likes"
		}
		t.add(entryNote, "", fmt.Sprintf("You learned %s %s %s.", t.speakerName(bachelor), verb, desc))

	case state.EventWarning:
		msg, _ := e.Data["message"].(string)
		if msg == "" {
			reason, _ := e.Data["reason"].(string)
			node, _ := e.Data["node"].(string)
			msg = fmt.Sprintf("%s at %s", reason, node)
		}
		t.add(entryWarning, "", msg)

	case state.EventSessionEnded:
		reason, _ := e.Data["reason"].(string)
		if reason != "" && reason != "ended" {
			t.add(entryWarning, "", "Conversation aborted: "+reason)
		}
	}
}

// Plain renders the transcript without styling, for the clipboard
func (t *transcript) Plain() string {
	var b strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case entryLine:
			if e.speaker != "" {
				b.WriteString(e.speaker + ": ")
			}
			b.WriteString(e.text + "\n")
		case entryChoice:
			b.WriteString("> " + e.text + "\n")
		case entryNote:
			b.WriteString("  (" + e.text + ")\n")
		case entryWarning:
			b.WriteString("  [!] " + e.text + "\n")
		}
	}
	return b.String()
}
