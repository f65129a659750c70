package pdfreport

var legalNotes = []string{
	"Dieses Dokument wurde gemäß §630f BGB (Dokumentationspflicht) erstellt.",
	"Die Angaben wurden nach bestem Wissen und Gewissen erfasst.",
	"Fehlerhafte oder unvollständige Angaben können zu rechtlichen Konsequenzen führen.",
}

func (rd *Renderer) layoutIncident(r IncidentReport) *page {
	org := orgOrDefault(r.Organization)
	p := newPage(org, "EINSATZNACHERFASSUNG", rd.now().In(rd.loc()).Format(deDateTime),
		org+" - Einsatznacherfassung", rd.Compress)

	p.section("1. EINSATZDATEN", 12)
	p.fields(2,
		field{"Datum/Alarmzeit:", rd.timeValue(r.AlarmAt)},
		field{"Datum/Einsatzende:", rd.timeValue(r.EndAt)},
		field{"Stichwort:", r.Stichwort},
		field{"Kategorie:", r.Kategorie},
		field{"Einsatznummer ILS:", r.EinsatznummerILS},
		field{"Meldebild:", r.Meldebild},
	)
	p.y += 2

	p.section("2. EINSATZORT", 6)
	p.paragraph(r.Adresse, 10)

	p.section("3. EINSATZMITTEL", 12)
	p.fields(2,
		field{"Disponierte EM (FW):", r.DisponierteEMFW},
		field{"Disponierte EM (RD):", r.DisponierteEMRD},
	)
	p.y += 2

	p.section("4. PATIENTEN-DATEN", 12)
	p.fields(1, field{"Erhoben:", yesNo(r.PatientenDatenErhoben)})
	if r.PatientenDatenErhoben {
		p.fields(2,
			field{"Name:", r.PatientName},
			field{"Pat.-Nummer ILS:", r.PatientNummerILS},
			field{"Alter/Geburtsdatum:", r.PatientAlterGeburtsdatum},
		)
	}
	p.y += 2

	p.section("5. SACHVERHALT VOR ORT", 6)
	p.paragraph(r.Sachverhalt, 10)

	p.section("6. PROTOKOLLPFLICHT (§630f BGB)", 12)
	p.fields(1, field{"War dieser Einsatz protokollpflichtig?", yesNo(r.Protokollpflichtig)})
	if r.ProtokollpflichtigBegruendung != "" {
		p.fields(1, field{"Begründung:", r.ProtokollpflichtigBegruendung})
	}
	p.y += 2

	p.section("7. VERANTWORTLICHER", 12)
	p.fields(2,
		field{"Name:", r.VerantwortlicherName},
		field{"Qualifikation:", r.VerantwortlicherQualifikation},
	)
	p.fields(1, field{
		"Mit der Thematik der Einsatz-/Patientendokumentation (gem. §630f BGB) unterwiesen?",
		yesNo(r.VerantwortlicherUnterwiesen),
	})
	p.y += 2

	p.section("8. NACHERFASSUNG", 12)
	p.fields(2,
		field{"Nacherfasst von:", r.NacherfasstVonName},
		field{"Datum:", rd.timeValue(r.NacherfasstAt)},
		field{"Qualifikation:", r.NacherfasstVonQualifikation},
	)
	p.y += 2

	p.section("9. UNTERSCHRIFT", 27)
	if r.NacherfasstUnterschrift == "" {
		p.note("Keine Unterschrift vorhanden", 10)
	} else {
		p.embed(r.NacherfasstUnterschrift, margin+2, p.y, 60, 25, SignaturePlaceholder)
		p.y += 27
	}
	p.y += 2

	p.section("10. RECHTLICHE HINWEISE", float64(len(legalNotes))*lineHeight)
	p.pdf.SetTextColor(80, 80, 80)
	for _, line := range legalNotes {
		p.note(line, 8)
	}
	p.pdf.SetTextColor(0, 0, 0)
	return p
}
