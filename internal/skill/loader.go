package skill

// LoadValidated loads a skill-layout unit and gates it through the
// validator. Unlike the validator itself, this entry point raises:
// an invalid unit yields a *ValidationError.
func LoadValidated(dir string, strict bool) (*Unit, error) {
	unit, err := Load(dir)
	if err != nil {
		return nil, err
	}

	v := &Validator{Strict: strict}
	result := v.ValidateUnit(unit)
	if !result.Valid {
		ve := &ValidationError{Name: unit.Name}
		for _, issue := range result.Errors() {
			ve.Messages = append(ve.Messages, issue.Message)
		}
		return nil, ve
	}
	for _, issue := range result.Warnings() {
		log.Warn("skill validation warning", map[string]interface{}{
			"skill":   unit.Name,
			"message": issue.Message,
		})
	}
	return unit, nil
}

// LoadDirectory loads every unit under dir into a name-keyed map.
// When validate is set, invalid units are logged and skipped; the map
// may therefore hold fewer units than were discovered.
func LoadDirectory(dir string, validate, strict bool) map[string]*Unit {
	units := make(map[string]*Unit)
	v := &Validator{Strict: strict}

	for _, unit := range DiscoverAll(dir, DiscoverOptions{Recursive: true}) {
		if validate {
			result := v.ValidateDir(unit.BasePath)
			if !result.Valid {
				msgs := make([]string, 0, len(result.Errors()))
				for _, issue := range result.Errors() {
					msgs = append(msgs, issue.Message)
				}
				log.Error("skipping invalid skill", map[string]interface{}{
					"name":   unit.Name,
					"errors": msgs,
				})
				continue
			}
			for _, issue := range result.Warnings() {
				log.Warn("skill validation warning", map[string]interface{}{
					"skill":   unit.Name,
					"message": issue.Message,
				})
			}
		}
		units[unit.Name] = unit
	}

	log.Info("loaded skills", map[string]interface{}{"path": dir, "count": len(units)})
	return units
}
