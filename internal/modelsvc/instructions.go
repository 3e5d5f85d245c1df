package modelsvc

const extractEntriesInstruction = `This document is a medical coding audit. Extract every audited encounter.

Return ONLY a JSON array, one object per encounter, with these fields:
  "identifier": the patient ID / MRN / medical record number as a string of digits ("" if absent)
  "source_filename_reference": the note or file name the encounter refers to, if any
  "primary_code": the auditor-verified primary ICD-10 diagnosis code
  "secondary_codes": array of auditor-verified secondary ICD-10 codes
  "procedure_codes": array of auditor-verified CPT codes, keeping modifiers such as "99214-25"
  "notes": the auditor's comments

Use the corrected codes when the audit shows both billed and corrected values.
Do not include any text outside the JSON array.`

const extractTextInstruction = `Transcribe the full text of this clinical note exactly as written, including headers such as MRN or patient ID lines.
Return only the note text, without commentary.`

const codingInstruction = `Code the clinical note below.

Return ONLY a JSON object with these fields:
  "primary_code": the primary ICD-10 diagnosis code
  "secondary_codes": array of secondary ICD-10 codes
  "procedure_codes": array of CPT codes, with modifiers appended as "-NN"
  "reasoning": a short explanation of the coding decisions`
