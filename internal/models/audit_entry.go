package models

// AuditEntry is one immutable row of change history: the old and new
// serialized value of a single field at the moment it changed. Entries
// reference their origin weakly by table name and id, so history survives
// deletion of the record itself. AuditEntry is itself never audited,
// updated, or deleted.
type AuditEntry struct {
	Record
	OriginTable string `gorm:"size:64;index:idx_audit_origin" json:"origin_table"`
	OriginID    uint   `gorm:"index:idx_audit_origin" json:"origin_id"`
	Field       string `gorm:"size:64" json:"field"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	Actor       string `gorm:"size:128" json:"actor"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
func (AuditEntry) Domain() string    { return "main" }
