package entitystore

// Apply copia sobre el pet solo los campos presentes en el patch; así dos
// escrituras concurrentes sobre campos distintos no se pisan.
func (pp PetPatch) Apply(p *Pet) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Breed != nil {
		p.Breed = *pp.Breed
	}
	if pp.Birthday.Set {
		p.Birthday = pp.Birthday.Value
	}
	if pp.Gender != nil {
		p.Gender = *pp.Gender
	}
	if pp.AdoptionDate.Set {
		p.AdoptionDate = pp.AdoptionDate.Value
	}
	if pp.ProfileImageURL != nil {
		p.ProfileImageURL = *pp.ProfileImageURL
	}
	if pp.MicrochipID != nil {
		p.MicrochipID = *pp.MicrochipID
	}
	if pp.MedicalNotes != nil {
		p.MedicalNotes = *pp.MedicalNotes
	}
	if pp.VetInfo != nil {
		p.VetInfo = append([]VetInfo(nil), (*pp.VetInfo)...)
	}
}

func (tp TaskPatch) Apply(t *Task) {
	if tp.Name != nil {
		t.Name = *tp.Name
	}
	if tp.Color != nil {
		t.Color = *tp.Color
	}
	if tp.TextColor != nil {
		t.TextColor = *tp.TextColor
	}
	if tp.Order != nil {
		t.Order = *tp.Order
	}
}

func (lp LogPatch) Apply(l *Log) {
	if lp.TaskID != nil {
		l.TaskID = *lp.TaskID
	}
	if lp.TaskName != nil {
		l.TaskName = *lp.TaskName
	}
	if lp.Timestamp != nil {
		l.Timestamp = *lp.Timestamp
	}
	if lp.Note != nil {
		l.Note = *lp.Note
	}
}

// Contains indica si id está en ids.
func Contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
