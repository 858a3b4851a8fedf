package celiaquia

import (
	"errors"
	"testing"
)

func TestFindTransitionRejectsSkippingStages(t *testing.T) {
	_, err := FindTransition(ExpedienteIniciada, ExpedienteEnviadoAPago)
	if !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("FindTransition() error = %v, want ErrTransitionNotAllowed", err)
	}
}

func TestFindTransitionAdminBranches(t *testing.T) {
	tr, err := FindTransition(ExpedienteCruzado, ExpedienteDescartado)
	if err != nil {
		t.Fatalf("FindTransition() error = %v", err)
	}
	if tr.Gate != GateExplicitAdminAction {
		t.Fatalf("gate = %q", tr.Gate)
	}

	if _, err := FindTransition(ExpedienteFinalizado, ExpedienteInactivada); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("terminal state must reject transitions, got %v", err)
	}

	if err := AuthorizeExpedienteTransition(tr, SystemActor); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("system actor must not discard, got %v", err)
	}
	if err := AuthorizeExpedienteTransition(tr, Actor{Username: "ana", Role: RoleTecnico}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("tecnico must not discard, got %v", err)
	}
	if err := AuthorizeExpedienteTransition(tr, Actor{Username: "coord", Role: RoleCoordinador}); err != nil {
		t.Fatalf("coordinador must discard, got %v", err)
	}
}

func TestGateHolds(t *testing.T) {
	stats := GateStats{
		Legajos: 3,
		Revision: map[RevisionTecnico]int64{
			RevisionAprobado:  2,
			RevisionRechazado: 1,
		},
	}
	if !GateHolds(GateRevisionClosed, stats) {
		t.Fatalf("revision gate should hold")
	}
	stats.Revision[RevisionAprobado] = 1
	stats.Revision[RevisionSubsanar] = 1
	if GateHolds(GateRevisionClosed, stats) || !GateHolds(GateHasSubsanar, stats) || GateHolds(GateNoSubsanar, stats) {
		t.Fatalf("subsanar gates misevaluated: %+v", stats)
	}
	if GateHolds(GateRenaperResolved, GateStats{}) {
		t.Fatalf("empty expediente must not pass RENAPER gate")
	}
}

func TestAutomaticTransitionsFromRevision(t *testing.T) {
	got := AutomaticTransitionsFrom(ExpedienteEnRevisionTecnica)
	if len(got) != 2 || got[0].To != ExpedienteEnSubsanacion || got[1].To != ExpedienteAprobadoTecnico {
		t.Fatalf("AutomaticTransitionsFrom() = %+v", got)
	}
	if len(AutomaticTransitionsFrom(ExpedienteCupoDecidido)) != 0 {
		t.Fatalf("payment dispatch must not be automatic")
	}
}

func TestAuthorizeRevision(t *testing.T) {
	tecnico := Actor{Username: "tec", Role: RoleTecnico}
	provincia := Actor{Username: "prov", Role: RoleProvincia}

	if err := AuthorizeRevision(RevisionPendiente, RevisionSubsanar, tecnico); err != nil {
		t.Fatalf("tecnico PENDIENTE->SUBSANAR: %v", err)
	}
	if err := AuthorizeRevision(RevisionSubsanar, RevisionSubsanado, tecnico); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("tecnico SUBSANAR->SUBSANADO must be denied, got %v", err)
	}
	if err := AuthorizeRevision(RevisionSubsanar, RevisionSubsanado, provincia); err != nil {
		t.Fatalf("provincia SUBSANAR->SUBSANADO: %v", err)
	}
	if err := AuthorizeRevision(RevisionAprobado, RevisionRechazado, tecnico); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("APROBADO is final for revision, got %v", err)
	}
	if ComentarioForRevision(RevisionSubsanar) != ComentarioSubsanacionMotivo {
		t.Fatalf("SUBSANAR must log a SUBSANACION_MOTIVO entry")
	}
}

func TestSortCupoCandidatesTieBreak(t *testing.T) {
	in := []CupoCandidate{
		{LegajoID: 1, Documento: "30000002", CreatedAt: date(2025, 1, 2)},
		{LegajoID: 2, Documento: "30000009", CreatedAt: date(2025, 1, 1)},
		{LegajoID: 3, Documento: "30000001", CreatedAt: date(2025, 1, 2)},
	}
	SortCupoCandidates(in)
	if in[0].LegajoID != 2 || in[1].LegajoID != 3 || in[2].LegajoID != 1 {
		t.Fatalf("order = %+v", in)
	}
	if DecideCupo(5, 10) != CupoDentro || DecideCupo(2, 2) != CupoFuera {
		t.Fatalf("DecideCupo misbehaves")
	}
	if !ArchivosOK([]uint64{1, 2}, []uint64{2, 1, 3}) || ArchivosOK([]uint64{1, 2}, []uint64{1}) {
		t.Fatalf("ArchivosOK misbehaves")
	}
}
