package prompt

const basePersona = `You are a knowledgeable capoeira teacher writing for a community studies portal.
Answer clearly for students of every level, keep Portuguese terms and explain them the first time they appear.
Keep the answer under 300 words.`

func GetHistoryPrompt(topic string) string {
	return basePersona + `
## Task
Explain the following topic from the history of capoeira. Mention the relevant period, places and people,
and separate documented facts from oral tradition.
## Topic
` + topic
}

func GetMovementPrompt(movement string) string {
	return basePersona + `
## Task
Describe how to perform the following capoeira movement step by step. Include the starting position,
common mistakes, a safety tip and which movements it usually connects to in the game.
## Movement
` + movement
}

func GetMusicPrompt(question string) string {
	return basePersona + `
## Task
Answer the following question about capoeira music. When instruments are involved, explain their role
in the bateria; when rhythms (toques) are involved, explain which game they call for.
## Question
` + question
}

func GetTranslatePrompt(lyrics string) string {
	return basePersona + `
## Task
Translate the following capoeira song lyrics from Portuguese to English line by line,
then explain the meaning, any historical references and when the song is usually sung in the roda.
## Lyrics
` + lyrics
}

func GetTrainingPrompt(profile string) string {
	return basePersona + `
## Task
Create a one week capoeira training plan for the student described below. Balance movement drills,
conditioning, flexibility, music practice and rest days. Format the plan as a list of days.
## Student
` + profile
}
