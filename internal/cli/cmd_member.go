package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/amanthanvi/registry/internal/storage"
	"github.com/spf13/cobra"
)

// maxImageFileSize caps a single CNIC scan read from disk.
const maxImageFileSize = 16 << 20

func newMemberCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Member record management",
	}
	cmd.AddCommand(
		newMemberAddCommand(deps),
		newMemberListCommand(deps),
		newMemberFindCommand(deps),
		newMemberShowCommand(deps),
		newMemberEditCommand(deps),
		newMemberRemoveCommand(deps),
		newMemberImagesCommand(deps),
	)
	return cmd
}

type memberFlags struct {
	name       string
	guardian   string
	gender     string
	cnic       string
	dob        string
	issued     string
	expires    string
	frontImage string
	backImage  string
}

func (f *memberFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Full name")
	cmd.Flags().StringVar(&f.guardian, "guardian", "", "Father or husband name")
	cmd.Flags().StringVar(&f.gender, "gender", "", "Gender")
	cmd.Flags().StringVar(&f.cnic, "cnic", "", "CNIC number")
	cmd.Flags().StringVar(&f.dob, "dob", "", "Date of birth")
	cmd.Flags().StringVar(&f.issued, "issued", "", "CNIC date of issue")
	cmd.Flags().StringVar(&f.expires, "expires", "", "CNIC date of expiry")
	cmd.Flags().StringVar(&f.frontImage, "front-image", "", "Path to the CNIC front scan")
	cmd.Flags().StringVar(&f.backImage, "back-image", "", "Path to the CNIC back scan")
}

// overlay copies every flag the user set onto in.
func (f *memberFlags) overlay(cmd *cobra.Command, in *app.MemberInput) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("guardian") {
		in.FatherHusbandName = f.guardian
	}
	if changed("gender") {
		in.Gender = f.gender
	}
	if changed("cnic") {
		in.CNICNumber = f.cnic
	}
	if changed("dob") {
		in.DateOfBirth = f.dob
	}
	if changed("issued") {
		in.DateOfIssue = f.issued
	}
	if changed("expires") {
		in.DateOfExpiry = f.expires
	}
	if changed("front-image") {
		data, err := readImageFile(f.frontImage)
		if err != nil {
			return err
		}
		in.CNICFrontImage = data
	}
	if changed("back-image") {
		data, err := readImageFile(f.backImage)
		if err != nil {
			return err
		}
		in.CNICBackImage = data
	}
	return nil
}

func readImageFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if info.Size() > maxImageFileSize {
		return nil, usageErrorf("image %s exceeds %d MiB limit", path, maxImageFileSize>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func newMemberAddCommand(deps commandDeps) *cobra.Command {
	var flags memberFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		Example: "  registry member add --name \"Ali Khan\" --guardian \"Raza Khan\" --gender Male \\\n" +
			"    --cnic 35202-1234567-1 --dob 1990-02-14 --issued 2018-06-01 --expires 2028-06-01 \\\n" +
			"    --front-image ./front.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("member add does not accept positional arguments")
			}
			var in app.MemberInput
			if err := flags.overlay(cmd, &in); err != nil {
				return mapCommandError(err)
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				id, err := s.members.Create(ctx, in)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "message": app.MessageMemberAdded})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "%s (id=%d)\n", app.MessageMemberAdded, id)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newMemberListCommand(deps commandDeps) *cobra.Command {
	var (
		search string
		by     string
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List members",
		Example: "  registry member ls\n" +
			"  registry member ls --search ali\n" +
			"  registry member ls --search 35202 --by cnic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("member ls does not accept positional arguments")
			}
			field, err := searchField(by)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				members, err := s.members.List(ctx, app.ListMembersRequest{Search: search, Field: field})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, members)
				}
				if deps.globals.Quiet {
					return nil
				}
				for _, member := range members {
					if err := printMemberLine(deps.out, member); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive substring filter")
	cmd.Flags().StringVar(&by, "by", "name", "Field the search applies to: name or cnic")
	return cmd
}

func searchField(by string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(by)) {
	case "", "name":
		return app.SearchFieldName, nil
	case "cnic", app.SearchFieldCNIC:
		return app.SearchFieldCNIC, nil
	default:
		return "", usageErrorf("--by must be name or cnic, got %q", by)
	}
}

func newMemberFindCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "find <cnic>",
		Short: "Find a member by CNIC number",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("member find requires exactly one CNIC number")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				member, found, err := s.members.FindByCNIC(ctx, args[0])
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if !found {
						return printJSON(deps.out, nil)
					}
					return printJSON(deps.out, member)
				}
				if !found {
					_, err := fmt.Fprintf(deps.out, "no member with CNIC %s\n", args[0])
					return err
				}
				return printMemberDetail(deps.out, member)
			})
		},
	}
}

func newMemberShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show member details",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("member show requires exactly one member id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMemberID("member show", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				member, err := s.members.Get(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, member)
				}
				return printMemberDetail(deps.out, *member)
			})
		},
	}
}

func newMemberEditCommand(deps commandDeps) *cobra.Command {
	var (
		flags       memberFlags
		clearImages bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a member; unset fields keep their stored value",
		Example: "  registry member edit 4 --name \"Ali Raza Khan\"\n" +
			"  registry member edit 4 --clear-images --front-image ./new-front.jpg",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("member edit requires exactly one member id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMemberID("member edit", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				existing, err := s.members.Get(ctx, id)
				if err != nil {
					return err
				}
				in := app.InputFromMember(*existing)
				if clearImages {
					in.CNICFrontImage = nil
					in.CNICBackImage = nil
				}
				if err := flags.overlay(cmd, &in); err != nil {
					return err
				}
				if err := s.members.Update(ctx, id, in); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "message": app.MessageMemberUpdated})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintln(deps.out, app.MessageMemberUpdated)
				return err
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&clearImages, "clear-images", false, "Remove both stored CNIC scans before applying image flags")
	return cmd
}

func newMemberRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a member",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("member rm requires exactly one member id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMemberID("member rm", args[0])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				if err := s.members.Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "message": app.MessageMemberDeleted})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err := fmt.Fprintln(deps.out, app.MessageMemberDeleted)
				return err
			})
		},
	}
}

func newMemberImagesCommand(deps commandDeps) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:     "images <id>",
		Short:   "Write the stored CNIC scans of a member to files",
		Example: "  registry member images 4 --out ./scans",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("member images requires exactly one member id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMemberID("member images", args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(outDir) == "" {
				return usageErrorf("member images requires --out")
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				member, err := s.members.Get(ctx, id)
				if err != nil {
					return err
				}
				written, err := writeMemberImages(outDir, *member)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"id": id, "files": written})
				}
				if deps.globals.Quiet {
					return nil
				}
				if len(written) == 0 {
					_, err := fmt.Fprintf(deps.out, "member %d has no stored CNIC scans\n", id)
					return err
				}
				for _, path := range written {
					if _, err := fmt.Fprintln(deps.out, path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory")
	return cmd
}

func writeMemberImages(dir string, member storage.Member) ([]string, error) {
	images := []struct {
		side string
		data []byte
	}{
		{"front", member.CNICFrontImage},
		{"back", member.CNICBackImage},
	}

	written := []string{}
	for _, image := range images {
		if len(image.data) == 0 {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return written, fmt.Errorf("create image directory: %w", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("member-%d-%s%s", member.ID, image.side, imageExtension(image.data)))
		if err := os.WriteFile(path, image.data, 0o600); err != nil {
			return written, fmt.Errorf("write %s image: %w", image.side, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func imageExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func printMemberLine(w io.Writer, member storage.Member) error {
	_, err := fmt.Fprintf(
		w,
		"%d %s cnic=%s gender=%s expires=%s scans=%s/%s\n",
		member.ID,
		member.Name,
		member.CNICNumber,
		member.Gender,
		member.DateOfExpiry,
		boolToState(len(member.CNICFrontImage) > 0, "front", "-"),
		boolToState(len(member.CNICBackImage) > 0, "back", "-"),
	)
	return err
}

func printMemberDetail(w io.Writer, member storage.Member) error {
	created := ""
	if !member.CreatedAt.IsZero() {
		created = member.CreatedAt.Format("2006-01-02 15:04:05")
	}
	rows := [][2]string{
		{"id", fmt.Sprintf("%d", member.ID)},
		{"name", member.Name},
		{"father/husband", member.FatherHusbandName},
		{"gender", member.Gender},
		{"cnic", member.CNICNumber},
		{"date of birth", member.DateOfBirth},
		{"date of issue", member.DateOfIssue},
		{"date of expiry", member.DateOfExpiry},
		{"front scan", scanSummary(member.CNICFrontImage)},
		{"back scan", scanSummary(member.CNICBackImage)},
		{"created", created},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-15s %s\n", row[0]+":", row[1]); err != nil {
			return err
		}
	}
	return nil
}

func scanSummary(data []byte) string {
	if len(data) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d bytes (%s)", len(data), strings.TrimPrefix(imageExtension(data), "."))
}
