package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"celiaquia/internal/bootstrap"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
	"celiaquia/internal/usecase/celiaquia"
)

var documentosCmd = &cobra.Command{
	Use:   "documentos",
	Short: "Manage the document catalog and legajo attachments",
}

var documentosTipoCmd = &cobra.Command{
	Use:   "tipo",
	Short: "Create or update a tipo de documento by name",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		nombre, _ := cmd.Flags().GetString("nombre")
		descripcion, _ := cmd.Flags().GetString("descripcion")
		requerido, _ := cmd.Flags().GetBool("requerido")
		activo, _ := cmd.Flags().GetBool("activo")
		orden, _ := cmd.Flags().GetInt("orden")

		tipo, err := svc.UpsertTipoDocumento(cmd.Context(), ports.TipoDocumento{
			Nombre:      nombre,
			Descripcion: descripcion,
			Requerido:   requerido,
			Activo:      activo,
			Orden:       orden,
		}, actor)
		if err != nil {
			return errs.Wrap(err, "upsert tipo documento")
		}
		return writef(cmd, "tipo %d %s requerido=%t activo=%t\n", tipo.ID, tipo.Nombre, tipo.Requerido, tipo.Activo)
	}),
}

var documentosTiposCmd = &cobra.Command{
	Use:   "tipos",
	Short: "List the document catalog",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		all, _ := cmd.Flags().GetBool("all")
		list, err := svc.ListTiposDocumento(cmd.Context(), !all)
		if err != nil {
			return errs.Wrap(err, "list tipos documento")
		}
		for _, t := range list {
			if err := writef(cmd, "%d\t%s\trequerido=%t\tactivo=%t\n", t.ID, t.Nombre, t.Requerido, t.Activo); err != nil {
				return err
			}
		}
		return nil
	}),
}

var documentosUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Attach a file to a legajo; --replace swaps an existing one",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		legajoID, _ := cmd.Flags().GetUint64("legajo")
		tipoID, _ := cmd.Flags().GetUint64("tipo")
		path, _ := cmd.Flags().GetString("file")
		observaciones, _ := cmd.Flags().GetString("observaciones")
		replace, _ := cmd.Flags().GetBool("replace")
		version, _ := cmd.Flags().GetInt64("version")

		f, err := os.Open(path)
		if err != nil {
			return errs.Wrap(err, "open document")
		}
		defer f.Close()

		input := celiaquia.UploadDocumentInput{
			LegajoID:        legajoID,
			TipoDocumentoID: tipoID,
			Filename:        filepath.Base(path),
			Content:         f,
			Observaciones:   observaciones,
			Actor:           actor,
		}
		var doc ports.DocumentoLegajo
		if replace {
			doc, err = svc.ReplaceDocumento(cmd.Context(), celiaquia.ReplaceDocumentInput{UploadDocumentInput: input, ExpectedVersion: version})
		} else {
			doc, err = svc.UploadDocumento(cmd.Context(), input)
		}
		if err != nil {
			return errs.Wrap(err, "store documento")
		}
		return writef(cmd, "documento %d legajo=%d tipo=%d version=%d hash=%s\n", doc.ID, doc.LegajoID, doc.TipoDocumentoID, doc.Version, doc.Hash)
	}),
}

var documentosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a legajo's documents",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *celiaquia.Service) error {
		legajoID, _ := cmd.Flags().GetUint64("legajo")
		list, err := svc.ListDocumentos(cmd.Context(), legajoID)
		if err != nil {
			return errs.Wrap(err, "list documentos")
		}
		for _, d := range list {
			if err := writef(cmd, "%d\ttipo=%d\tv%d\t%s\t%d bytes\n", d.ID, d.TipoDocumentoID, d.Version, d.Archivo, d.Tamano); err != nil {
				return err
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(documentosCmd)
	documentosCmd.AddCommand(documentosTipoCmd, documentosTiposCmd, documentosUploadCmd, documentosListCmd)

	documentosTipoCmd.Flags().String("nombre", "", "Catalog name")
	documentosTipoCmd.Flags().String("descripcion", "", "Description")
	documentosTipoCmd.Flags().Bool("requerido", false, "Every legajo must provide it")
	documentosTipoCmd.Flags().Bool("activo", true, "Offered for uploads")
	documentosTipoCmd.Flags().Int("orden", 0, "Display order")
	_ = documentosTipoCmd.MarkFlagRequired("nombre")

	documentosTiposCmd.Flags().Bool("all", false, "Include inactive types")

	documentosUploadCmd.Flags().Uint64("legajo", 0, "Legajo id")
	documentosUploadCmd.Flags().Uint64("tipo", 0, "Tipo de documento id")
	documentosUploadCmd.Flags().String("file", "", "File to upload")
	documentosUploadCmd.Flags().String("observaciones", "", "Notes")
	documentosUploadCmd.Flags().Bool("replace", false, "Replace the current file for this tipo")
	documentosUploadCmd.Flags().Int64("version", 0, "Expected documento version when replacing (0 uses the current one)")
	_ = documentosUploadCmd.MarkFlagRequired("legajo")
	_ = documentosUploadCmd.MarkFlagRequired("tipo")
	_ = documentosUploadCmd.MarkFlagRequired("file")

	documentosListCmd.Flags().Uint64("legajo", 0, "Legajo id")
	_ = documentosListCmd.MarkFlagRequired("legajo")
}
