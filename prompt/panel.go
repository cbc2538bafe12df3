package prompt

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Panel is one of the portal's question boxes: user text goes in, a prompt comes out
type Panel struct {
	Name        string
	Title       string
	Description string
	Template    func(input string) string
}

var panels = map[string]Panel{
	"history": {
		Name:        "history",
		Title:       "History of Capoeira",
		Description: "Ask about a period, a mestre or an event in capoeira history",
		Template:    GetHistoryPrompt,
	},
	"movement": {
		Name:        "movement",
		Title:       "Movement Explainer",
		Description: "Get a step by step explanation of a capoeira movement",
		Template:    GetMovementPrompt,
	},
	"music": {
		Name:        "music",
		Title:       "Music and Instruments",
		Description: "Learn about instruments, toques and the role of music in the roda",
		Template:    GetMusicPrompt,
	},
	"translate": {
		Name:        "translate",
		Title:       "Song Translator",
		Description: "Translate and explain capoeira song lyrics from Portuguese",
		Template:    GetTranslatePrompt,
	},
	"training": {
		Name:        "training",
		Title:       "Training Planner",
		Description: "Describe your level and goals to get a weekly training plan",
		Template:    GetTrainingPrompt,
	},
}

// Names returns the available panel names in sorted order
func Names() []string {
	names := lo.Keys(panels)
	slices.Sort(names)
	return names
}

// All returns every panel sorted by name
func All() []Panel {
	return lo.Map(Names(), func(name string, _ int) Panel {
		return panels[name]
	})
}

// Get looks up a panel by name
func Get(name string) (Panel, error) {
	panel, ok := panels[name]
	if !ok {
		return Panel{}, fmt.Errorf("unknown panel %q, available panels: %v", name, Names())
	}
	return panel, nil
}

// Build renders the named panel's prompt for input. Input is forwarded as is.
func Build(name, input string) (string, error) {
	panel, err := Get(name)
	if err != nil {
		return "", err
	}
	return panel.Template(input), nil
}

// Localize asks for the answer in language unless it is the default English
func Localize(prompt, language string) string {
	if language == "" || language == "en-US" {
		return prompt
	}
	return prompt + fmt.Sprintf("\n- Answer in %s.", language)
}
