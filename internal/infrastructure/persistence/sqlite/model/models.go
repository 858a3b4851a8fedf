package model

// All lists every table for schema migration, parents first.
func All() []any {
	return []any{
		&Expediente{},
		&ExpedienteEstadoHistorial{},
		&Legajo{},
		&ValidacionTecnica{},
		&CruceResultado{},
		&CupoTitular{},
		&ValidacionRenaper{},
		&TipoDocumento{},
		&DocumentoLegajo{},
		&HistorialComentario{},
		&AsignacionTecnico{},
		&RegistroErroneo{},
		&CupoProvincia{},
		&PagoExpediente{},
		&PagoNomina{},
		&WorkItem{},
		&AuditEvent{},
		&CacheKV{},
	}
}
