package curriculum

import "fmt"

// placeholderImage stands in for mind maps and infographics not yet produced.
const placeholderImage = "https://i.pinimg.com/originals/2c/61/d6/2c61d6d6402f0663d2d9b62711690076.jpg"

const placeholderQuizLength = 10

// Placeholder generates stand-in material for a topic whose content has not been authored.
func Placeholder(t Topic) TopicContent {
	quiz := make([]QuizQuestion, placeholderQuizLength)
	for i := range quiz {
		quiz[i] = QuizQuestion{
			Question:           fmt.Sprintf("Pregunta %d sobre %s. ¿Cuál es la opción correcta?", i+1, t.Title),
			Options:            []string{"Opción A (Incorrecta)", "Opción B (Correcta)", "Opción C (Incorrecta)", "Opción D (Incorrecta)"},
			CorrectAnswerIndex: 1,
		}
	}

	return TopicContent{
		TopicID: t.ID,
		Summary: fmt.Sprintf("Este es el contenido de investigación para el tema %q (%s).\n\n"+
			"Aquí se detallará la teoría, normativas y procedimientos de ingeniería relacionados. "+
			"Este contenido será reemplazado por la información curricular específica.", t.Title, t.ID),
		KeyPoints: []string{
			"Punto clave 1 sobre ingeniería.",
			"Punto clave 2 sobre gestión.",
			"Punto clave 3 sobre normativas.",
			"Punto clave 4 sobre aplicación.",
			"Punto clave 5 sobre ética.",
		},
		RealWorldExample: "Ejemplo de aplicación en una industria local o proyecto de infraestructura nacional.",
		Flashcards: []Flashcard{
			{Term: "Concepto A", Definition: "Definición técnica del concepto A."},
			{Term: "Concepto B", Definition: "Definición técnica del concepto B."},
			{Term: "Norma ISO", Definition: "Explicación de la norma aplicable."},
			{Term: "Variable X", Definition: "Factor crítico en este tipo de análisis."},
		},
		Quiz:            quiz,
		MindMapURL:      placeholderImage,
		InfographicURL:  placeholderImage,
		PresentationURL: "#",
		Placeholder:     true,
	}
}
