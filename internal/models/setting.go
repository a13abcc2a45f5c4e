package models

// ServerSetting is a single key/value pair of server configuration kept in
// the database so admins can change it at runtime.
type ServerSetting struct {
	Record
	Key   string `gorm:"size:64;uniqueIndex" json:"key"`
	Value string `json:"value"`
}

func (ServerSetting) TableName() string { return "server_settings" }
func (ServerSetting) Domain() string    { return "main" }

// SettingPatch is a partial update for ServerSetting.
type SettingPatch struct {
	Value *string
}

func (p SettingPatch) Changes() map[string]any {
	m := map[string]any{}
	if p.Value != nil {
		m["value"] = *p.Value
	}
	return m
}
