package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cpm/pkg/core"
	"github.com/aretw0/cpm/pkg/hsm"
)

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(a tea.Model, s string) tea.Model {
	for _, r := range s {
		a, _ = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return a
}

func chooseModel(t *testing.T, name string) tea.Model {
	t.Helper()
	var a tea.Model = newApp(context.Background(), func(n string) (*core.Model, error) { return hsm.New(n) })
	for _, n := range hsm.Names() {
		if n == name {
			break
		}
		a, _ = a.Update(key(tea.KeyDown))
	}
	a, _ = a.Update(key(tea.KeyEnter))
	require.Equal(t, stepAction, a.(app).step)
	require.Equal(t, name, a.(app).model.Name())
	return a
}

func chooseAction(a tea.Model, action string) tea.Model {
	for _, act := range appActions {
		if act == action {
			break
		}
		a, _ = a.Update(key(tea.KeyDown))
	}
	a, _ = a.Update(key(tea.KeyEnter))
	return a
}

func TestAppDocumentation(t *testing.T) {
	a := chooseModel(t, "rtl_int")
	a = chooseAction(a, actionDocs)

	assert.Equal(t, stepResult, a.(app).step)
	assert.Contains(t, a.View(), "HOW-TO")

	a, _ = a.Update(key(tea.KeyEnter))
	assert.Equal(t, stepAction, a.(app).step)
}

func TestAppTemplate(t *testing.T) {
	a := chooseModel(t, "rtl_seg")
	a = chooseAction(a, actionTemplate)
	require.Equal(t, stepPath, a.(app).step)
	assert.Equal(t, "rtl_seg_template.csv", a.(app).path)

	path := filepath.Join(t.TempDir(), "t.csv")
	for range a.(app).path {
		a, _ = a.Update(key(tea.KeyBackspace))
	}
	a = typeText(a, path)
	a, cmd := a.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)

	a, _ = a.Update(cmd())
	assert.Equal(t, stepResult, a.(app).step)
	require.NoError(t, a.(app).err)
	assert.FileExists(t, path)
}

func TestAppAnalyzeMissingInput(t *testing.T) {
	a := chooseModel(t, "usa_seg")
	a = chooseAction(a, actionAnalyze)
	a = typeText(a, filepath.Join(t.TempDir(), "missing.csv"))
	a, cmd := a.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)

	a, _ = a.Update(cmd())
	assert.Error(t, a.(app).err)
	assert.NotContains(t, a.View(), "rows predicted")
}

func TestAppNavigation(t *testing.T) {
	a := chooseModel(t, "rml_seg")
	a = chooseAction(a, actionBack)
	assert.Equal(t, stepModel, a.(app).step)
	assert.Equal(t, 1, a.(app).cursor)

	_, cmd := a.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestAppOpenFailure(t *testing.T) {
	var a tea.Model = newApp(context.Background(), func(string) (*core.Model, error) { return nil, os.ErrPermission })
	a, _ = a.Update(key(tea.KeyEnter))
	assert.Equal(t, stepModel, a.(app).step)
	assert.Contains(t, a.View(), os.ErrPermission.Error())
}
