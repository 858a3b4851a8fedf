package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

var legajoCmd = &cobra.Command{
	Use:   "legajo",
	Short: "Review, assign and annotate legajos",
}

var legajoShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a legajo with its outcomes",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		detail, err := svc.GetLegajo(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "get legajo")
		}
		return writeJSON(cmd, detail)
	}),
}

var legajoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the legajos of an expediente, or those assigned to a técnico",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		expedienteID, _ := cmd.Flags().GetUint64("expediente")
		tecnico, _ := cmd.Flags().GetString("tecnico")
		rawRevision, _ := cmd.Flags().GetString("revision")

		var (
			list []ports.LegajoDetail
			err  error
		)
		if tecnico != "" {
			list, err = svc.LegajosOf(cmd.Context(), tecnico)
		} else {
			filter := ports.LegajoFilter{ExpedienteID: expedienteID}
			if rawRevision != "" {
				if filter.Revision, err = domain.ParseRevisionTecnico(rawRevision); err != nil {
					return err
				}
			}
			list, err = svc.ListLegajos(cmd.Context(), filter)
		}
		if err != nil {
			return errs.Wrap(err, "list legajos")
		}
		for _, d := range list {
			if err := writef(cmd, "%d\t%s\t%s, %s\trenaper=%s\tsintys=%s\trevision=%s\tcupo=%s\n",
				d.Legajo.ID, d.Legajo.Documento, d.Legajo.Apellido, d.Legajo.Nombre,
				d.Renaper.Estado.Label(), d.Cruce.Resultado, d.Validacion.Revision, d.Cupo.Estado); err != nil {
				return err
			}
		}
		return nil
	}),
}

var legajoReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record a técnico decision: APROBADO, RECHAZADO or SUBSANAR",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		rawRevision, _ := cmd.Flags().GetString("revision")
		comentario, _ := cmd.Flags().GetString("comentario")
		version, _ := cmd.Flags().GetInt64("version")

		revision, err := domain.ParseRevisionTecnico(rawRevision)
		if err != nil {
			return err
		}
		detail, err := svc.ReviewLegajo(ctx, celiaquia.ReviewInput{
			LegajoID:        id,
			Revision:        revision,
			Comentario:      comentario,
			ExpectedVersion: version,
			Actor:           actor,
		})
		if err != nil {
			return errs.Wrap(err, "review legajo")
		}
		return writef(cmd, "legajo %d revision=%s version=%d\n", detail.Legajo.ID, detail.Validacion.Revision, detail.Legajo.Version)
	}),
}

var legajoSubsanarCmd = &cobra.Command{
	Use:   "subsanar",
	Short: "Answer a subsanación request, optionally attaching a document",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		respuesta, _ := cmd.Flags().GetString("respuesta")
		path, _ := cmd.Flags().GetString("file")
		tipoID, _ := cmd.Flags().GetUint64("tipo")

		input := celiaquia.SubsanacionInput{LegajoID: id, Respuesta: respuesta, Actor: actor}
		if path != "" {
			f, err := os.Open(path)
			if err != nil {
				return errs.Wrap(err, "open document")
			}
			defer f.Close()
			input.Documento = &celiaquia.UploadDocumentInput{
				TipoDocumentoID: tipoID,
				Filename:        filepath.Base(path),
				Content:         f,
			}
		}

		detail, err := svc.SubmitSubsanacion(cmd.Context(), input)
		if err != nil {
			return errs.Wrap(err, "submit subsanacion")
		}
		return writef(cmd, "legajo %d revision=%s archivos_ok=%t\n", detail.Legajo.ID, detail.Validacion.Revision, detail.Legajo.ArchivosOK)
	}),
}

var legajoAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a técnico to one legajo, or to every legajo of an expediente",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		expedienteID, _ := cmd.Flags().GetUint64("expediente")
		tecnico, _ := cmd.Flags().GetString("tecnico")

		if expedienteID != 0 {
			n, err := svc.BulkAssign(cmd.Context(), celiaquia.BulkAssignInput{ExpedienteID: expedienteID, Tecnico: tecnico, Actor: actor})
			if err != nil {
				return errs.Wrap(err, "bulk assign")
			}
			return writef(cmd, "assigned %d legajos of expediente %d to %s\n", n, expedienteID, tecnico)
		}
		a, err := svc.AssignTecnico(cmd.Context(), celiaquia.AssignInput{LegajoID: id, Tecnico: tecnico, Actor: actor})
		if err != nil {
			return errs.Wrap(err, "assign tecnico")
		}
		return writef(cmd, "asignacion %d legajo=%d tecnico=%s\n", a.ID, id, a.Tecnico)
	}),
}

var legajoAsignacionesCmd = &cobra.Command{
	Use:   "asignaciones",
	Short: "Show the assignment history of a legajo",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		list, err := svc.ListAsignaciones(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "list asignaciones")
		}
		for _, a := range list {
			if err := writef(cmd, "%d\t%s\tactiva=%t\tpor=%s\t%s\n", a.ID, a.Tecnico, a.Activa, a.AsignadoPor, a.CreatedAt.Format("2006-01-02 15:04")); err != nil {
				return err
			}
		}
		return nil
	}),
}

var legajoRenaperCmd = &cobra.Command{
	Use:   "renaper-resolve",
	Short: "Record an operator decision on the RENAPER check (1 aceptado, 2 rechazado, 3 subsanar)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		code, _ := cmd.Flags().GetInt("estado")
		comentario, _ := cmd.Flags().GetString("comentario")

		estado, err := domain.ParseEstadoRenaper(code)
		if err != nil {
			return err
		}
		detail, err := svc.ResolveRenaper(cmd.Context(), celiaquia.ResolveRenaperInput{LegajoID: id, Estado: estado, Comentario: comentario, Actor: actor})
		if err != nil {
			return errs.Wrap(err, "resolve renaper")
		}
		return writef(cmd, "legajo %d renaper=%s\n", detail.Legajo.ID, detail.Renaper.Estado.Label())
	}),
}

var legajoBajaCmd = &cobra.Command{
	Use:   "baja",
	Short: "Release an active titular and free its cupo slot",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		motivo, _ := cmd.Flags().GetString("motivo")
		detail, err := svc.ReleaseTitular(cmd.Context(), celiaquia.ReleaseTitularInput{LegajoID: id, Motivo: motivo, Actor: actor})
		if err != nil {
			return errs.Wrap(err, "release titular")
		}
		return writef(cmd, "legajo %d titular_activo=%t\n", detail.Legajo.ID, detail.Cupo.EsTitularActivo)
	}),
}

var legajoCommentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add a free-form note to a legajo's history",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetUint64("id")
		tipo, _ := cmd.Flags().GetString("tipo")
		body, _ := cmd.Flags().GetString("body")
		archivo, _ := cmd.Flags().GetString("archivo")

		c, err := svc.AddComment(cmd.Context(), celiaquia.CommentInput{
			LegajoID:   id,
			Tipo:       domain.TipoComentario(tipo),
			Comentario: body,
			Archivo:    archivo,
			Actor:      actor,
		})
		if err != nil {
			return errs.Wrap(err, "add comment")
		}
		return writef(cmd, "comentario %d tipo=%s\n", c.ID, c.Tipo)
	}),
}

var legajoCommentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Show a legajo's comment history, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		id, _ := cmd.Flags().GetUint64("id")
		list, err := svc.ListComments(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "list comments")
		}
		for _, c := range list {
			if err := writef(cmd, "%s\t%s\t%s\t%s\n", c.CreatedAt.Format("2006-01-02 15:04:05"), c.Tipo, c.Usuario, c.Comentario); err != nil {
				return err
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(legajoCmd)
	legajoCmd.AddCommand(
		legajoShowCmd,
		legajoListCmd,
		legajoReviewCmd,
		legajoSubsanarCmd,
		legajoAssignCmd,
		legajoAsignacionesCmd,
		legajoRenaperCmd,
		legajoBajaCmd,
		legajoCommentCmd,
		legajoCommentsCmd,
	)

	legajoListCmd.Flags().Uint64("expediente", 0, "Expediente id")
	legajoListCmd.Flags().String("tecnico", "", "List the legajos actively assigned to this técnico")
	legajoListCmd.Flags().String("revision", "", "Filter by revision code")

	legajoReviewCmd.Flags().String("revision", "", "APROBADO, RECHAZADO or SUBSANAR")
	legajoReviewCmd.Flags().String("comentario", "", "Comment; required for SUBSANAR")
	legajoReviewCmd.Flags().Int64("version", 0, "Expected legajo version (0 skips the check)")
	_ = legajoReviewCmd.MarkFlagRequired("revision")

	legajoSubsanarCmd.Flags().String("respuesta", "", "Answer to the subsanación request")
	legajoSubsanarCmd.Flags().String("file", "", "Document to attach")
	legajoSubsanarCmd.Flags().Uint64("tipo", 0, "Tipo de documento id of the attached file")

	legajoAssignCmd.Flags().Uint64("expediente", 0, "Assign every legajo of this expediente")
	legajoAssignCmd.Flags().String("tecnico", "", "Técnico username")
	_ = legajoAssignCmd.MarkFlagRequired("tecnico")

	legajoRenaperCmd.Flags().Int("estado", 0, "RENAPER estado code")
	legajoRenaperCmd.Flags().String("comentario", "", "Operator note")
	_ = legajoRenaperCmd.MarkFlagRequired("estado")

	legajoBajaCmd.Flags().String("motivo", "", "Reason for the baja")

	legajoCommentCmd.Flags().String("tipo", string(domain.ComentarioObservacionGeneral), "OBSERVACION_GENERAL or PAGO_OBSERVACION")
	legajoCommentCmd.Flags().String("body", "", "Comment text")
	legajoCommentCmd.Flags().String("archivo", "", "Optional attachment reference")
	_ = legajoCommentCmd.MarkFlagRequired("body")

	legajoAssignCmd.Flags().Uint64("id", 0, "Legajo id")
	for _, c := range []*cobra.Command{legajoShowCmd, legajoReviewCmd, legajoSubsanarCmd, legajoAsignacionesCmd, legajoRenaperCmd, legajoBajaCmd, legajoCommentCmd, legajoCommentsCmd} {
		c.Flags().Uint64("id", 0, "Legajo id")
		_ = c.MarkFlagRequired("id")
	}
}
