package controller

import (
	"context"

	"openvpn-webui/internal/diff"
	"openvpn-webui/internal/gateway"
	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/ovpn"
	"openvpn-webui/internal/panel"
)

const updateButton = "update"

// Settings edits the OpenVPN server settings.
type Settings struct {
	pane   panel.Pane
	client *gateway.Client

	ctx      context.Context
	baseline diff.Record
	update   diff.Record
}

// NewSettings creates the settings controller for pane.
func NewSettings(env Env, pane panel.Pane) *Settings {
	return &Settings{
		pane:   pane,
		client: env.client(pane),
		update: diff.Record{},
	}
}

// DisplayContent renders the pane and loads the current settings.
func (s *Settings) DisplayContent(ctx context.Context) {
	s.ctx = ctx
	s.displaySettings("", nil)
	s.getSettings()
}

// Pending returns the change-set awaiting submission.
func (s *Settings) Pending() diff.Record {
	return s.update.Clone()
}

func (s *Settings) displaySettings(status string, form *panel.Form) {
	s.pane.Render(panel.View{
		Title:  i18n.T("settings.title"),
		Status: status,
		Buttons: []panel.Button{{
			ID:       updateButton,
			Label:    i18n.T("settings.update"),
			Disabled: len(s.update) == 0,
			OnClick:  s.onUpdate,
		}},
		Form: form,
	})
}

// getSettings fetches the catalogue, then the settings, then builds the form.
func (s *Settings) getSettings() {
	s.update = diff.Record{}
	s.client.Run(s.ctx, func(options string) {
		s.client.Run(s.ctx, func(current string) {
			s.buildEditForm(ovpn.DecodeRecord(current), ovpn.DecodeCatalogue(options))
		}, []string{gateway.SubGet}, nil)
	}, []string{gateway.SubGetOpt}, nil)
}

func (s *Settings) buildEditForm(current diff.Record, catalogue ovpn.Catalogue) {
	s.baseline = current
	form := &panel.Form{
		Fields:   settingsFields(current, catalogue),
		OnChange: s.onChange,
	}
	s.displaySettings("", form)
	s.pane.SetButtonDisabled(updateButton, len(s.update) == 0)
}

func (s *Settings) onChange(string, any) {
	s.update = diff.BuildOpts(s.pane.FormData(), s.baseline)
	s.pane.SetButtonDisabled(updateButton, len(s.update) == 0)
}

func (s *Settings) onUpdate() {
	if len(s.update) == 0 {
		s.pane.Notify(panel.Notice{
			Kind:    panel.NoticeInfo,
			Title:   i18n.T("settings.unchanged.title"),
			Message: i18n.T("settings.unchanged.message"),
		})
		return
	}
	if !s.validNetwork() {
		return
	}
	s.pane.Confirm(i18n.T("settings.confirm.title"), i18n.T("settings.confirm.text"), func() {
		pending := s.update
		s.update = diff.Record{}
		s.displaySettings(i18n.T("settings.updating"), nil)
		s.pane.Busy(i18n.T("settings.updating"))
		s.client.Run(s.ctx, func(string) {
			s.getSettings()
		}, []string{gateway.SubSetup}, pending)
	})
}

// validNetwork checks the effective vpn_network/vpn_mask pair when either
// is part of the change-set.
func (s *Settings) validNetwork() bool {
	_, netChanged := s.update["vpn_network"]
	_, maskChanged := s.update["vpn_mask"]
	if !netChanged && !maskChanged {
		return true
	}
	network := diff.DataString(s.effective("vpn_network"))
	mask := diff.DataString(s.effective("vpn_mask"))
	if _, err := ovpn.VPNPrefix(network, mask); err != nil {
		s.pane.Notify(panel.Notice{
			Kind:    panel.NoticeInfo,
			Title:   i18n.T("settings.invalid_network.title"),
			Message: i18n.T("settings.invalid_network.message", map[string]any{"Network": network, "Mask": mask}),
		})
		return false
	}
	return true
}

func (s *Settings) effective(key string) any {
	if value, ok := s.update[key]; ok {
		return value
	}
	return s.baseline[key]
}

func settingsFields(current diff.Record, catalogue ovpn.Catalogue) []panel.Field {
	field := func(param string, typ panel.FieldType, options []string) panel.Field {
		return panel.Field{
			Param:   param,
			Label:   i18n.T("field." + param),
			Type:    typ,
			Value:   current[param],
			Options: options,
			Comment: i18n.T("field." + param + ".comment"),
		}
	}
	port := field("port", panel.FieldNumber, nil)
	port.Min, port.Max, port.Step = panel.Float(0), panel.Float(30000), 1

	return []panel.Field{
		port,
		field("protocol", panel.FieldSelect, catalogue.Protocol),
		field("deviceovpn", panel.FieldSelect, catalogue.Device),
		field("compression", panel.FieldBoolean, nil),
		field("duplicate_cn", panel.FieldBoolean, nil),
		field("pam_authentication", panel.FieldBoolean, nil),
		field("extra_options", panel.FieldMulti, nil),
		field("loglevel", panel.FieldSelect, catalogue.LogLevel),
		field("vpn_network", panel.FieldIP, nil),
		field("vpn_mask", panel.FieldIP, nil),
		field("gateway_interface", panel.FieldSelect, catalogue.Interfaces),
		field("default_gateway", panel.FieldBoolean, nil),
		field("default_route", panel.FieldBoolean, nil),
		field("client_to_client", panel.FieldBoolean, nil),
		field("dns_server", panel.FieldSelect, catalogue.DNSServer),
		field("dns", panel.FieldMultiIP, nil),
		field("dns_domains", panel.FieldMultiIP, nil),
		field("wins", panel.FieldMultiIP, nil),
		field("public_address", panel.FieldText, nil),
	}
}
