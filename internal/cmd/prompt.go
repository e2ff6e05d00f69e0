package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flo-mic/pkgdeploy/internal/idmap"
)

// confirm asks a yes/no question. Replaced in tests.
var confirm = func(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Value(&ok),
	)).Run()
	return ok, err
}

const (
	choiceExisting = "existing"
	choiceNew      = "new"
	choiceSkip     = "skip"
)

// promptMapping asks how mp resolves on the target server and applies the
// answer. It reports whether mp was changed. Replaced in tests.
var promptMapping = func(mp *idmap.Mapping, targetServer string) (bool, error) {
	choice := choiceExisting
	if mp.IsNewObject() {
		choice = choiceNew
	}
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("%s %q (id %s)", mp.ObjectType(), mp.SourceName(), mp.SourceID())).
			Description("How does this object map to " + targetServer + "?").
			Options(
				huh.NewOption("Existing object on the target", choiceExisting),
				huh.NewOption("Create as new object", choiceNew),
				huh.NewOption("Decide later", choiceSkip),
			).
			Value(&choice),
	)).Run(); err != nil {
		return false, err
	}

	switch choice {
	case choiceSkip:
		return false, nil
	case choiceNew:
		mp.SetNewObject(true)
		return true, nil
	}

	targetID, targetName := mp.TargetID(), mp.TargetName()
	parentID, parentName := mp.TargetParentID(), mp.TargetParentName()
	fields := []huh.Field{
		huh.NewInput().
			Title("Target id").
			Value(&targetID).
			Validate(notEmpty("target id")),
		huh.NewInput().
			Title("Target name").
			Placeholder(mp.SourceName()).
			Value(&targetName),
	}
	if mp.IsScoped() {
		fields = append(fields,
			huh.NewInput().
				Title("Target parent id").
				Description(fmt.Sprintf("Id of the %s on %s", mp.ParentType(), targetServer)).
				Value(&parentID).
				Validate(notEmpty("target parent id")),
			huh.NewInput().
				Title("Target parent name").
				Placeholder(mp.ParentName()).
				Value(&parentName),
		)
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return false, err
	}
	if targetName == "" {
		targetName = mp.SourceName()
	}
	if mp.IsScoped() && parentName == "" {
		parentName = mp.ParentName()
	}
	if err := mp.SetTarget(targetID, targetName, parentID, parentName); err != nil {
		return false, err
	}
	return true, nil
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}
