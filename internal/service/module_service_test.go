package service

import (
	"encoding/base64"
	"testing"

	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCandidate(question string) generation.Candidate {
	return generation.Candidate{
		"type":        "vocabulary",
		"question":    question,
		"options":     []any{"thee", "you", "them"},
		"correct":     "you",
		"explanation": "thee is the object form of thou",
	}
}

func TestSaveModule(t *testing.T) {
	f := newFixture(t)
	s := NewModuleService(f.modules)

	result, err := s.SaveModule(&f.teacher.ID, SaveModuleRequest{
		ModuleName:  "  Macbeth ",
		ClassicText: "Is this a dagger which I see before me",
		Panels: []PanelInput{
			{PanelNumber: 1, Dialogue: "", ImageData: "aGVsbG8=", DialogueAudio: "aGVsbG8="},
			{PanelNumber: 2, Dialogue: "Out, damned spot!", NarrationAudio: "aGVsbG8="},
		},
		Exercises: []generation.Candidate{
			validCandidate("Which word means you?"),
			{"question": "", "options": []any{"a", "b"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.PanelsSaved)
	assert.Equal(t, 1, result.ImagesSaved)
	assert.Equal(t, 2, result.AudiosSaved)
	assert.Equal(t, 1, result.ExercisesSaved)
	assert.Equal(t, 1, result.ExercisesRejected)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, generation.ReasonMissingQuestion, result.Rejections[0].Reason)

	module, err := s.GetModule(result.ModuleID)
	require.NoError(t, err)
	assert.Equal(t, "Macbeth", module.ModuleName)
	require.Len(t, module.Panels, 2)
	assert.Equal(t, generation.DefaultDialogue, module.Panels[0].Dialogue)
	require.Len(t, module.Exercises, 1)
	assert.Equal(t, 1, module.Exercises[0].CorrectAnswer)
	assert.Equal(t, "medium", module.Exercises[0].Difficulty)
}

func TestSaveModule_Rejections(t *testing.T) {
	f := newFixture(t)
	s := NewModuleService(f.modules)

	_, err := s.SaveModule(nil, SaveModuleRequest{
		ModuleName:  "Bad",
		ClassicText: "text",
		Exercises:   []generation.Candidate{{"question": "q", "options": []any{"only"}}},
	})
	assert.ErrorIs(t, err, util.ErrNoValidExercises)

	_, err = s.SaveModule(nil, SaveModuleRequest{
		ModuleName:  "Dup",
		ClassicText: "text",
		Panels:      []PanelInput{{PanelNumber: 1}, {PanelNumber: 1}},
	})
	assert.ErrorIs(t, err, util.ErrDuplicatePanel)
}

func TestListAndDeleteModules(t *testing.T) {
	f := newFixture(t)
	s := NewModuleService(f.modules)
	changed := 0
	s.OnProgressChanged = func() { changed++ }

	modules, err := s.ListModules()
	require.NoError(t, err)
	require.Len(t, modules, 2)
	for _, m := range modules {
		if m.ID == f.moduleID {
			assert.Equal(t, int64(1), m.PanelCount)
			assert.Equal(t, int64(2), m.ExerciseCount)
		}
	}

	student := f.user(t, "alice", model.Student)
	_, err = f.progressService().AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex1", SelectedAnswer: intPtr(0)})
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteModule(f.moduleID), util.ErrModuleHasAnswers)
	assert.Equal(t, 0, changed)

	require.NoError(t, s.DeleteModule(f.otherID))
	assert.Equal(t, 1, changed)
	_, err = s.GetModule(f.otherID)
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
	assert.ErrorIs(t, s.DeleteModule(f.otherID), util.ErrModuleNotFound)
}

func TestExerciseCRUD(t *testing.T) {
	f := newFixture(t)
	s := NewModuleService(f.modules)

	ex, err := s.AddExercise(f.moduleID, ExerciseInput{
		Question:      "Pick the modern form",
		Options:       []string{"art", "are"},
		CorrectAnswer: "B",
		Explanation:   "thou art means you are",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ex.CorrectAnswer)
	assert.Equal(t, 2, ex.Position)
	assert.Equal(t, generation.TypeMultipleChoice, ex.Type)

	_, err = s.AddExercise("missing", ExerciseInput{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 0, Explanation: "e"})
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
	_, err = s.AddExercise(f.moduleID, ExerciseInput{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 5.0, Explanation: "e"})
	assert.ErrorIs(t, err, util.ErrInvalidExercise)

	// 只改选项时，原正确答案下标仍需在范围内
	_, err = s.UpdateExercise(ex.ID, ExerciseUpdate{Options: []string{"only", "two"}, CorrectAnswer: 3.0})
	assert.ErrorIs(t, err, util.ErrInvalidExercise)

	question := "Choose the modern verb"
	updated, err := s.UpdateExercise(ex.ID, ExerciseUpdate{Question: &question, Options: []string{"art", "are", "is"}})
	require.NoError(t, err)
	assert.Equal(t, question, updated.Question)
	assert.Equal(t, 1, updated.CorrectAnswer)
	assert.Equal(t, []string{"art", "are", "is"}, updated.OptionList())
	assert.Equal(t, ex.ID, updated.ID)
	assert.Equal(t, f.moduleID, updated.ModuleID)

	list, err := s.ModuleExercises(f.moduleID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CanDelete)

	student := f.user(t, "alice", model.Student)
	_, err = f.progressService().AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex1", SelectedAnswer: intPtr(2)})
	require.NoError(t, err)

	list, err = s.ModuleExercises(f.moduleID)
	require.NoError(t, err)
	assert.False(t, list[0].CanDelete)
	assert.Equal(t, int64(1), list[0].Attempts)
	assert.Equal(t, 100.0, list[0].CorrectRate)

	assert.ErrorIs(t, s.DeleteExercise("ex1"), util.ErrExerciseHasAnswers)
	require.NoError(t, s.DeleteExercise("ex2"))
	assert.ErrorIs(t, s.DeleteExercise("ex2"), util.ErrExerciseNotFound)

	_, err = s.ModuleExercises("missing")
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestPanelAudio(t *testing.T) {
	f := newFixture(t)
	s := NewModuleService(f.modules)
	audio := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString([]byte("RIFF0000WAVEfmt "))

	require.NoError(t, s.SavePanelAudio(f.moduleID, 1, util.AudioNarration, audio, 2.5))
	got, err := s.GetPanelAudio(f.moduleID, 1)
	require.NoError(t, err)
	assert.Equal(t, audio, got.NarrationAudio)
	assert.Equal(t, 2.5, got.NarrationAudioDuration)
	assert.Empty(t, got.DialogueAudio)

	assert.ErrorIs(t, s.SavePanelAudio(f.moduleID, 9, util.AudioDialogue, audio, 1), util.ErrPanelNotFound)
	assert.ErrorIs(t, s.SavePanelAudio(f.moduleID, 1, util.AudioDialogue, "%%%", 1), util.ErrInvalidMedia)
	assert.ErrorIs(t, s.SavePanelAudio(f.moduleID, 1, "music", audio, 1), util.ErrInvalidQuery)

	_, err = s.GetPanelAudio(f.moduleID, 9)
	assert.ErrorIs(t, err, util.ErrPanelNotFound)
}
