package flow

import (
	"fmt"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// interviewQuestion is one step of the guided interview.
type interviewQuestion struct {
	Key    string
	Prompt string
}

var barInterview = []interviewQuestion{
	{Key: "vibe", Prompt: "Qual é a vibe de hoje: agito, conversa tranquila ou música ao vivo?"},
	{Key: "preco", Prompt: "E de grana, como a gente vai: econômico, moderado ou luxo?"},
	{Key: "extras", Prompt: "Algo que não pode faltar? Chopp gelado, petisco, cerveja artesanal... pode falar!"},
}

var restaurantInterview = []interviewQuestion{
	{Key: "cozinha", Prompt: "Qual cozinha te chama hoje? Japonesa, italiana, brasileira, hambúrguer..."},
	{Key: "preco", Prompt: "E o bolso, como está: econômico, moderado ou luxo?"},
	{Key: "ocasiao", Prompt: "É pra qual ocasião? Encontro, família, amigos ou aquele rango rápido?"},
}

func interviewFor(venue models.Venue) []interviewQuestion {
	if venue == models.VenueRestaurant {
		return restaurantInterview
	}
	return barInterview
}

// nextInterviewPrompt returns the question at step, prefixed with a rotating
// bridge word after the first one.
func nextInterviewPrompt(venue models.Venue, step int) string {
	script := interviewFor(venue)
	if step < 0 || step >= len(script) {
		return ""
	}
	prompt := script[step].Prompt
	if step > 0 {
		prompt = bridges[(step-1)%len(bridges)] + prompt
	}
	return prompt
}

// recordInterviewAnswer stores the answer for the current step and returns
// the prompt for the next one, or done=true when the script is exhausted.
func recordInterviewAnswer(venue models.Venue, step int, answer string, answers map[string]string) (next string, done bool, err error) {
	script := interviewFor(venue)
	if step < 0 || step >= len(script) {
		return "", false, fmt.Errorf("interview step %d out of range for %s", step, venue)
	}
	answers[script[step].Key] = answer
	if step+1 >= len(script) {
		return "", true, nil
	}
	return nextInterviewPrompt(venue, step+1), false, nil
}
