package booking

import (
	"fmt"
	"time"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
)

var prompts = map[scheduling.PromptStyle]map[Mode]string{
	scheduling.PromptStyleConcise: {
		ModeOffer:              "Want to book a time?",
		ModeSlots:              "Pick a time:",
		ModeAwaitingName:       "Your name?",
		ModeAwaitingPhone:      "Best phone number?",
		ModeAwaitingCustomTime: "What time works for you?",
		ModeConfirmed:          "Booked for %s.",
		ModeDeclined:           "No problem.",
		ModeNotAvailable:       "No open times right now.",
	},
	scheduling.PromptStyleFriendly: {
		ModeOffer:              "Would you like to set up a time to chat?",
		ModeSlots:              "Here are a few times that work. Which one suits you best?",
		ModeAwaitingName:       "Great! Who should we put the appointment under?",
		ModeAwaitingPhone:      "Almost done! What's the best number to reach you?",
		ModeAwaitingCustomTime: "Let us know a day and time that works for you and we'll check it.",
		ModeConfirmed:          "You're all set for %s. Talk soon!",
		ModeDeclined:           "No worries at all. Reach out whenever you're ready.",
		ModeNotAvailable:       "Sorry, we don't have any openings right now. Want us to check again later?",
	},
	scheduling.PromptStyleFormal: {
		ModeOffer:              "Would you like to schedule an appointment?",
		ModeSlots:              "Please select one of the following available times.",
		ModeAwaitingName:       "May we have your full name for the appointment?",
		ModeAwaitingPhone:      "Please provide a telephone number where we can reach you.",
		ModeAwaitingCustomTime: "Please propose a date and time for your appointment.",
		ModeConfirmed:          "Your appointment is confirmed for %s.",
		ModeDeclined:           "Understood. Please contact us whenever you wish to schedule.",
		ModeNotAvailable:       "Unfortunately there is no availability at this time.",
	},
}

var reasonPrefix = map[string]string{
	ReasonSlotTaken:       "That time was just taken. ",
	ReasonSlotUnavailable: "That time is no longer available. ",
}

func promptFor(style scheduling.PromptStyle, p *Payload) string {
	byMode, ok := prompts[style]
	if !ok {
		byMode = prompts[scheduling.PromptStyleFriendly]
	}
	text := byMode[p.Mode]
	if p.Mode == ModeConfirmed && p.ConfirmedSlot != nil {
		text = fmt.Sprintf(text, formatSlot(*p.ConfirmedSlot))
	}
	if p.Reason != "" && (p.Mode == ModeSlots || p.Mode == ModeAwaitingCustomTime) {
		prefix, ok := reasonPrefix[p.Reason]
		if !ok {
			prefix = "That time can't be booked. "
		}
		text = prefix + text
	}
	return text
}

// formatSlot renders the start in the slot's own timezone.
func formatSlot(slot availability.Slot) string {
	loc, err := time.LoadLocation(slot.Timezone)
	if err != nil || slot.Timezone == "" {
		loc = time.UTC
	}
	return slot.Start.In(loc).Format("Mon Jan 2 at 3:04 PM MST")
}
