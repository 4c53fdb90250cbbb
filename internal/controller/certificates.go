package controller

import (
	"context"
	"encoding/base64"
	"errors"

	"openvpn-webui/internal/diff"
	"openvpn-webui/internal/gateway"
	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/ovpn"
	"openvpn-webui/internal/panel"
)

const (
	addButton = "add"

	actionDownload = "download"
	actionDelete   = "delete"

	allowedKey = "allowed"
)

// Certificates lists, adds, edits, downloads and deletes client certificates.
type Certificates struct {
	pane     panel.Pane
	client   *gateway.Client
	viewer   string
	readFile func(string) ([]byte, error)

	ctx   context.Context
	certs map[string]struct{}
}

// NewCertificates creates the certificate controller for pane.
func NewCertificates(env Env, pane panel.Pane) *Certificates {
	return &Certificates{
		pane:     pane,
		client:   env.client(pane),
		viewer:   env.Viewer,
		readFile: env.readFile,
		certs:    map[string]struct{}{},
	}
}

// DisplayContent renders the certificate table.
func (c *Certificates) DisplayContent(ctx context.Context) {
	c.ctx = ctx
	c.getCertificates()
}

// Names returns the cached certificate names.
func (c *Certificates) Names() map[string]struct{} {
	out := make(map[string]struct{}, len(c.certs))
	for name := range c.certs {
		out[name] = struct{}{}
	}
	return out
}

func (c *Certificates) getCertificates() {
	c.client.Run(c.ctx, func(data string) {
		certs := ovpn.DecodeCertificates(data)
		c.certs = make(map[string]struct{}, len(certs))
		rows := make([]diff.Record, 0, len(certs))
		for _, cert := range certs {
			c.certs[cert.Name] = struct{}{}
			rows = append(rows, diff.Record{
				"name":     cert.Name,
				"users":    cert.Users,
				allowedKey: cert.Allowed(c.viewer),
			})
		}
		c.render(rows)
	}, nil, nil)
}

func (c *Certificates) render(rows []diff.Record) {
	c.pane.Render(panel.View{
		Title: i18n.T("certs.title"),
		Buttons: []panel.Button{{
			ID:      addButton,
			Label:   i18n.T("certs.add"),
			OnClick: c.addCertificate,
		}},
		Table: &panel.Table{
			Columns: []panel.Column{
				{Key: "name", Label: i18n.T("field.name")},
				{Key: "users", Label: i18n.T("field.users")},
			},
			Rows: rows,
			Actions: []panel.RowAction{
				{Name: actionDownload, Label: i18n.T("certs.download"), DisableKey: allowedKey, Do: c.guard(c.download)},
				{Name: actionDelete, Label: i18n.T("certs.delete"), DisableKey: allowedKey, Do: c.guard(c.delete)},
			},
			OnClick: c.editCertificate,
		},
	})
}

// guard refuses row actions the viewer is not allowed to run.
func (c *Certificates) guard(action func(cert ovpn.Certificate)) func(diff.Record) {
	return func(row diff.Record) {
		cert := certificateFromRow(row)
		if allowed, _ := row[allowedKey].(bool); !allowed {
			c.pane.Notify(panel.Notice{
				Kind:    panel.NoticeError,
				Title:   i18n.T("certs.forbidden.title"),
				Message: i18n.T("certs.forbidden.message", map[string]any{"Name": cert.Name}),
			})
			return
		}
		action(cert)
	}
}

func (c *Certificates) addCertificate() {
	c.buildEditDialog(ovpn.Certificate{Users: []string{}}, true)
}

func (c *Certificates) editCertificate(row diff.Record) {
	c.buildEditDialog(certificateFromRow(row), false)
}

func (c *Certificates) buildEditDialog(base ovpn.Certificate, newCert bool) {
	if base.Users == nil {
		base.Users = []string{}
	}
	c.client.Run(c.ctx, func(options string) {
		users := ovpn.DecodeCatalogue(options).Users
		fields := []panel.Field{{
			Param:   "users",
			Label:   i18n.T("field.users"),
			Type:    panel.FieldChoices,
			Value:   base.Users,
			Options: users,
			Comment: i18n.T("field.users.comment"),
		}}
		title := i18n.T("certs.dialog.edit", map[string]any{"Name": base.Name})
		if newCert {
			fields = append([]panel.Field{{
				Param:   "name",
				Label:   i18n.T("field.name"),
				Type:    panel.FieldText,
				Value:   ovpn.SuggestName(base.Users, c.certs),
				Comment: i18n.T("field.name.comment"),
			}}, fields...)
			title = i18n.T("certs.dialog.add")
		}
		c.pane.OpenDialog(panel.Dialog{
			Title:  title,
			Fields: fields,
			OnOK: func(data diff.Record) {
				c.submit(data, base, newCert)
			},
		})
	}, []string{gateway.SubGetOpt}, nil)
}

// submit validates the dialog result and sends the change-set.
func (c *Certificates) submit(edited diff.Record, base ovpn.Certificate, newCert bool) {
	edited = edited.Clone()
	if name, ok := edited["name"]; ok {
		edited["name"] = ovpn.SanitizeName(diff.DataString(name))
	}
	base.Name = ovpn.SanitizeName(base.Name)

	opts, name, err := certificateChanges(edited, base, newCert, c.certs)
	if err != nil {
		c.pane.Notify(validationNotice(err, name))
		return
	}

	textID := "certs.confirm.edit"
	if newCert {
		textID = "certs.confirm.add"
	}
	data := map[string]any{"Name": name}
	c.pane.Confirm(i18n.T("certs.confirm.title", data), i18n.T(textID, data), func() {
		c.pane.Busy(i18n.T("certs.busy.save"))
		c.client.Run(c.ctx, func(string) {
			c.DisplayContent(c.ctx)
		}, []string{gateway.SubAdd}, opts)
	})
}

var (
	errEmptyName     = errors.New("empty certificate name")
	errNameCollision = errors.New("certificate name exists")
	errNoChanges     = errors.New("no certificate changes")
)

// certificateChanges applies the submission guards in order and returns the
// change-set to send. The name of an existing certificate is its identity:
// it is left out of the comparison and re-attached to the result.
func certificateChanges(edited diff.Record, base ovpn.Certificate, newCert bool, existing map[string]struct{}) (diff.Record, string, error) {
	var name string
	baseline := diff.Record{}
	if newCert {
		name = diff.DataString(edited["name"])
	} else {
		name = base.Name
		baseline["users"] = base.Users
	}
	if name == "" {
		return nil, name, errEmptyName
	}
	if _, taken := existing[name]; newCert && taken {
		return nil, name, errNameCollision
	}
	opts := diff.BuildOpts(edited, baseline, "name")
	if len(opts) == 0 {
		return nil, name, errNoChanges
	}
	opts["name"] = name
	return opts, name, nil
}

func validationNotice(err error, name string) panel.Notice {
	notice := panel.Notice{Kind: panel.NoticeInfo}
	data := map[string]any{"Name": name}
	switch {
	case errors.Is(err, errEmptyName):
		notice.Title, notice.Message = i18n.T("certs.empty_name.title"), i18n.T("certs.empty_name.message")
	case errors.Is(err, errNameCollision):
		notice.Title, notice.Message = i18n.T("certs.exists.title", data), i18n.T("certs.exists.message")
	default:
		notice.Title, notice.Message = i18n.T("certs.unchanged.title"), i18n.T("certs.unchanged.message")
	}
	return notice
}

func (c *Certificates) download(cert ovpn.Certificate) {
	c.pane.Busy(i18n.T("certs.busy.download"))
	c.client.Run(c.ctx, func(result string) {
		archive := ovpn.DecodeDownload(result)
		content, err := c.readFile(archive.Zip)
		if err != nil {
			c.pane.Notify(panel.Notice{
				Kind:    panel.NoticeError,
				Title:   i18n.T("certs.download_failed.title"),
				Message: i18n.T("certs.download_failed.message", map[string]any{"Error": err.Error()}),
			})
		} else {
			c.pane.SaveFile(panel.Download{
				Filename: archive.Archive(),
				Href:     "data:application/zip;base64," + base64.StdEncoding.EncodeToString(content),
			})
		}
		c.getCertificates()
	}, []string{gateway.SubDownload}, map[string]string{"name": cert.Name})
}

func (c *Certificates) delete(cert ovpn.Certificate) {
	data := map[string]any{"Name": cert.Name}
	c.pane.Confirm(i18n.T("certs.delete.title", data), i18n.T("certs.delete.text", data), func() {
		c.pane.Busy(i18n.T("certs.busy.delete"))
		c.client.Run(c.ctx, func(string) {
			c.getCertificates()
		}, []string{gateway.SubDel}, map[string]string{"name": cert.Name})
	})
}

func certificateFromRow(row diff.Record) ovpn.Certificate {
	cert := ovpn.Certificate{Name: diff.DataString(row["name"]), Users: []string{}}
	switch users := row["users"].(type) {
	case []string:
		cert.Users = append(cert.Users, users...)
	case []any:
		for _, user := range users {
			cert.Users = append(cert.Users, diff.DataString(user))
		}
	}
	return cert
}
