// Package render produces the printable completion-certificate
// artifact.
package render

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"signet/internal/domain"
)

const certificateTemplate = `SIGNING CERTIFICATE
===================

Certificate ID:   {{ .Cert.ID }}
Certificate hash: {{ .Cert.CertificateHash }}
Issued at:        {{ .Cert.IssuedAt.Format "2006-01-02 15:04:05 UTC" }}

Contract
--------
ID:     {{ .Contract.ID }}
Title:  {{ .Contract.Title }}
Status: {{ .Contract.Status }}
{{- if .Contract.CompletedAt }}
Completed at: {{ .Contract.CompletedAt.Format "2006-01-02 15:04:05 UTC" }}
{{- end }}

Signatories
-----------
{{- range .Cert.Parties }}
- {{ .Name }} <{{ .Email }}> signed at {{ .SignedAt.Format "2006-01-02 15:04:05 UTC" }}
{{- end }}

This certificate attests that every required party signed the contract
identified above and that each signature carried a valid verification
hash at issuance time.
`

type TextRenderer struct {
	tmpl *template.Template
}

func NewTextRenderer() (*TextRenderer, error) {
	tmpl, err := template.New("certificate").Parse(certificateTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse certificate template: %w", err)
	}
	return &TextRenderer{tmpl: tmpl}, nil
}

func (r *TextRenderer) Render(ctx context.Context, contract domain.Contract, cert domain.Certificate) ([]byte, error) {
	data := struct {
		Contract domain.Contract
		Cert     domain.Certificate
	}{
		Contract: normalizeTimes(contract),
		Cert:     normalizeCertTimes(cert),
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeTimes(c domain.Contract) domain.Contract {
	if c.CompletedAt != nil {
		t := c.CompletedAt.UTC()
		c.CompletedAt = &t
	}
	return c
}

func normalizeCertTimes(c domain.Certificate) domain.Certificate {
	c.IssuedAt = c.IssuedAt.UTC()
	parties := make([]domain.CertificateParty, len(c.Parties))
	for i, p := range c.Parties {
		p.SignedAt = p.SignedAt.In(time.UTC)
		parties[i] = p
	}
	c.Parties = parties
	return c
}
