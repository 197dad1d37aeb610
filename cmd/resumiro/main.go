// Command resumiro calls the registry, directory and ledger from the shell.
//
// Every mutating subcommand acts as the principal given with -as. Results are
// printed as JSON; domain errors are printed as {"error", "message"} with
// exit status 1, usage errors exit with 2.
//
//	resumiro add-user -as 0xabc -principal 0xabc -role candidate
//	resumiro add-company -as 0xboss -name fpt -website fpt.com
//	resumiro add-cert -as 0xabc -name "toeic 990" -url xyz.com -verifier 0xboss -company 1
//	resumiro decide -as 0xboss -id 1 -status verified
//
// The database and bootstrap admin come from the same environment as the
// server (DB_PATH, ADMIN_PRINCIPAL, JWT_SECRET, LOG_LEVEL).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/audit"
	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/config"
	"github.com/sakif/resumiro/internal/facade"
	"github.com/sakif/resumiro/internal/handler"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository/sqlite"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// env is what every subcommand receives.
type env struct {
	facade *facade.Facade
	cfg    *config.Config
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error)
}

var commands = map[string]command{
	"add-user":       {"-as P -principal P -role ROLE", addUser},
	"delete-user":    {"-as P -principal P", deleteUser},
	"users":          {"[-role ROLE] [-count]", listUsers},
	"has-role":       {"-principal P -role ROLE", hasRole},
	"add-company":    {"-as P -name N [-website W] [-location L] [-extra E]", addCompany},
	"update-company": {"-as P -id ID [-name N] [-website W] [-location L] [-extra E]", updateCompany},
	"delete-company": {"-as P -id ID", deleteCompany},
	"connect":        {"-as P -recruiter P -company ID", connectRecruiter},
	"disconnect":     {"-as P -recruiter P -company ID", disconnectRecruiter},
	"companies":      {"[-recruiter P]", listCompanies},
	"company":        {"-id ID", getCompany},
	"recruiters":     {"-company ID", listRecruiters},
	"add-cert":       {"-as P -name N -url U -verifier P -company ID [-candidate P]", addCertificate},
	"update-cert":    {"-as P -id ID -verifier P -company ID [-name N] [-url U]", updateCertificate},
	"decide":         {"-as P -id ID -status verified|rejected [-at RFC3339]", decideCertificate},
	"delete-cert":    {"-as P -id ID", deleteCertificate},
	"cert":           {"-url U | -id ID", getCertificate},
	"certs":          {"-candidate P", listCertificates},
	"events":         {"-as ADMIN [-after SEQ] [-limit N]", listEvents},
	"token":          {"-principal P [-ttl DURATION]", mintToken},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		printUsage(stderr)
		return exitUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "resumiro: unknown command %q\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	// Log lines go to stderr so stdout stays valid JSON.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: max(cfg.LogLevel, slog.LevelWarn)}))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer db.Close()

	f := facade.Wire(db, audit.NewDispatcher(audit.LogSink(logger)), nil, logger)
	if cfg.AdminPrincipal != "" {
		if err := f.Bootstrap(ctx, cfg.AdminPrincipal); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintf(stderr, "usage: resumiro %s %s\n", args[0], cmd.usage) }

	result, err := cmd.run(ctx, &env{facade: f, cfg: cfg}, fs, args[1:])
	var usageErr usageError
	switch {
	case errors.Is(err, flag.ErrHelp):
		return exitUsage
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "resumiro %s: %s\n", args[0], usageErr)
		fs.Usage()
		return exitUsage
	case err != nil:
		printError(stdout, err)
		return exitError
	}

	if result == nil {
		result = map[string]bool{"ok": true}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	return exitOK
}

type usageError string

func (e usageError) Error() string { return string(e) }

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: resumiro <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].usage)
	}
}

func printError(w io.Writer, err error) {
	_, code := handler.StatusFor(err)
	msg := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	_ = json.NewEncoder(w).Encode(handler.ErrorResponse{Error: code, Message: msg})
}

// FLAG HELPERS

// parse turns flag errors into usage errors. The flag package has already
// printed the details.
func parse(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return usageError(err.Error())
}

// actAs registers the -as flag and returns the context for the caller.
func actAs(fs *flag.FlagSet) func(ctx context.Context) context.Context {
	as := fs.String("as", "", "acting principal")
	return func(ctx context.Context) context.Context {
		return auth.WithPrincipal(ctx, *as)
	}
}

func roleFlag(fs *flag.FlagSet, name string) *model.Role {
	r := new(model.Role)
	*r = -1
	fs.Func(name, "candidate|recruiter|company-admin|recruiter-admin|admin", func(s string) error {
		return r.UnmarshalText([]byte(s))
	})
	return r
}

func requireRoleFlag(r *model.Role) error {
	if *r < 0 {
		return usageError("-role is required")
	}
	return nil
}

// ---- users ----

func addUser(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	principal := fs.String("principal", "", "principal to register")
	role := roleFlag(fs, "role")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireRoleFlag(role); err != nil {
		return nil, err
	}
	return nil, e.facade.AddUser(caller(ctx), *principal, *role)
}

func deleteUser(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	principal := fs.String("principal", "", "principal to delete")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.DeleteUser(caller(ctx), *principal)
}

func listUsers(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	role := roleFlag(fs, "role")
	count := fs.Bool("count", false, "print only the number of holders of -role")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *count {
		if err := requireRoleFlag(role); err != nil {
			return nil, err
		}
		n, err := e.facade.CountByRole(ctx, *role)
		if err != nil {
			return nil, err
		}
		return map[string]int{"count": n}, nil
	}
	if *role < 0 {
		return e.facade.ListUsers(ctx)
	}
	return e.facade.ListByRole(ctx, *role)
}

func hasRole(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	principal := fs.String("principal", "", "principal to check")
	role := roleFlag(fs, "role")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireRoleFlag(role); err != nil {
		return nil, err
	}
	ok, err := e.facade.HasRole(ctx, *principal, *role)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"hasRole": ok}, nil
}

// ---- companies ----

type companyFlags struct {
	name, website, location, extra *string
}

func registerCompanyFlags(fs *flag.FlagSet) companyFlags {
	return companyFlags{
		name:     fs.String("name", "", "company name"),
		website:  fs.String("website", "", "website"),
		location: fs.String("location", "", "location"),
		extra:    fs.String("extra", "", "free-form details"),
	}
}

func addCompany(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	c := registerCompanyFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	id, err := e.facade.AddCompany(caller(ctx), *c.name, *c.website, *c.location, *c.extra)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"id": id}, nil
}

func updateCompany(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	id := fs.Int64("id", 0, "company id")
	c := registerCompanyFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.UpdateCompany(caller(ctx), *id, *c.name, *c.website, *c.location, *c.extra)
}

func deleteCompany(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	id := fs.Int64("id", 0, "company id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.DeleteCompany(caller(ctx), *id)
}

func membershipFlags(fs *flag.FlagSet) (*string, *int64) {
	return fs.String("recruiter", "", "recruiter principal"), fs.Int64("company", 0, "company id")
}

func connectRecruiter(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	recruiter, company := membershipFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.ConnectRecruiter(caller(ctx), *recruiter, *company)
}

func disconnectRecruiter(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	recruiter, company := membershipFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.DisconnectRecruiter(caller(ctx), *recruiter, *company)
}

func listCompanies(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	recruiter := fs.String("recruiter", "", "only companies this recruiter is connected to")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *recruiter != "" {
		return e.facade.GetCompaniesConnectedToRecruiter(ctx, *recruiter)
	}
	return e.facade.GetAllCompanies(ctx)
}

func getCompany(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	id := fs.Int64("id", 0, "company id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return e.facade.GetCompany(ctx, *id)
}

func listRecruiters(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	company := fs.Int64("company", 0, "company id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return e.facade.GetUsersConnectedToCompany(ctx, *company)
}

// ---- certificates ----

func addCertificate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	as := fs.String("as", "", "acting principal")
	name := fs.String("name", "", "certificate name")
	url := fs.String("url", "", "certificate url, unique on the platform")
	candidate := fs.String("candidate", "", "owner (defaults to -as)")
	verifier := fs.String("verifier", "", "creator of the verifying company")
	company := fs.Int64("company", 0, "verifying company id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *candidate == "" {
		*candidate = *as
	}

	id, err := e.facade.AddCertificate(auth.WithPrincipal(ctx, *as), *name, *url, *candidate, *verifier, *company)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"id": id}, nil
}

func updateCertificate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	id := fs.Int64("id", 0, "certificate id")
	name := fs.String("name", "", "new name (empty keeps)")
	url := fs.String("url", "", "new url (empty keeps)")
	verifier := fs.String("verifier", "", "creator of the verifying company")
	company := fs.Int64("company", 0, "verifying company id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.UpdateCertificate(caller(ctx), *id, *name, *url, *verifier, *company)
}

func decideCertificate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	id := fs.Int64("id", 0, "certificate id")
	status := fs.String("status", "", "verified or rejected")
	at := fs.String("at", "", "decision time, RFC 3339 (default now)")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	s, err := model.ParseStatus(*status)
	if err != nil {
		return nil, usageError(err.Error())
	}
	var decidedAt time.Time
	if *at != "" {
		if decidedAt, err = time.Parse(time.RFC3339, *at); err != nil {
			return nil, usageError("-at: " + err.Error())
		}
	}
	return nil, e.facade.ChangeCertificateStatus(caller(ctx), *id, s, decidedAt)
}

func deleteCertificate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	caller := actAs(fs)
	id := fs.Int64("id", 0, "certificate id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return nil, e.facade.DeleteCertificate(caller(ctx), *id)
}

func getCertificate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	url := fs.String("url", "", "certificate url")
	id := fs.Int64("id", 0, "certificate id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	switch {
	case *url != "" && *id != 0:
		return nil, usageError("use either -url or -id")
	case *url != "":
		return e.facade.GetCertificate(ctx, *url)
	default:
		return e.facade.GetCertificateByID(ctx, *id)
	}
}

func listCertificates(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	candidate := fs.String("candidate", "", "certificate owner")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(*candidate) == "" {
		return nil, usageError("-candidate is required")
	}
	return e.facade.GetCandidateCertificateViews(ctx, *candidate)
}

// ---- audit ----

// listEvents reads the audit log. Like the HTTP feed it is restricted to
// platform admins.
func listEvents(ctx context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	as := fs.String("as", "", "acting principal, must be admin")
	after := fs.Int64("after", 0, "return events after this seq")
	limit := fs.Int("limit", handler.DefaultEventLimit, "maximum number of events")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	ok, err := e.facade.HasRole(ctx, *as, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Unauthorized(*as, model.RoleAdmin.String())
	}
	if *limit <= 0 {
		*limit = handler.DefaultEventLimit
	}
	return e.facade.Events(ctx, *after, min(*limit, handler.MaxEventLimit))
}

func mintToken(_ context.Context, e *env, fs *flag.FlagSet, args []string) (any, error) {
	principal := fs.String("principal", "", "token subject")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if e.cfg.JWTSecret == "" {
		return nil, usageError("JWT_SECRET is not set")
	}

	tokens, err := auth.NewTokenService(e.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	token, err := tokens.GenerateWithDuration(*principal, *ttl)
	if err != nil {
		return nil, usageError(err.Error())
	}
	return map[string]string{"token": token}, nil
}
