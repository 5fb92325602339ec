package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/client/transport"
	"github.com/distribution/webhdfs/health"
	"github.com/distribution/webhdfs/health/checks"
	"github.com/spf13/cobra"
)

// operation runs fn against a client built from the configuration.
func (a *app) operation(fn func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, c, err := a.connect(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, c, cmd, args)
	}
}

func (a *app) commands() []*cobra.Command {
	var (
		overwrite    bool
		recursive    bool
		createParent bool
		permission   string
		offset       int64
		length       int64
		mtime        string
	)

	home := &cobra.Command{
		Use:   "home",
		Short: "print the home directory of the authenticated user",
		Args:  cobra.NoArgs,
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			resp, err := c.GetHomeDirectory(ctx)
			if err != nil {
				return err
			}
			p, err := client.DecodePath(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		}),
	}

	ls := &cobra.Command{
		Use:   "ls <path>",
		Short: "list a directory",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			statuses, err := c.List(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			for _, fs := range statuses {
				printStatus(tw, fs, fs.PathSuffix)
			}
			return tw.Flush()
		}),
	}

	stat := &cobra.Command{
		Use:   "stat <path>",
		Short: "print the status of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			fs, err := c.Stat(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			printStatus(tw, fs, args[0])
			return tw.Flush()
		}),
	}

	du := &cobra.Command{
		Use:   "du <path>",
		Short: "summarize the content of a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			resp, err := c.GetContentSummary(ctx, args[0])
			if err != nil {
				return err
			}
			cs, err := client.DecodeContentSummary(resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%d\t%d\t%s\n", cs.DirectoryCount, cs.FileCount, cs.Length, cs.SpaceConsumed, args[0])
			return nil
		}),
	}

	checksum := &cobra.Command{
		Use:   "checksum <path>",
		Short: "print the checksum of a file",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			resp, err := c.GetFileChecksum(ctx, args[0])
			if err != nil {
				return err
			}
			sum, err := client.DecodeFileChecksum(resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sum, args[0])
			return nil
		}),
	}

	cat := &cobra.Command{
		Use:   "cat <path>",
		Short: "write the content of a file to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			resp, err := c.Open(ctx, args[0], cmd.OutOrStdout(), client.OpenOptions{Offset: offset, Length: length})
			if err != nil {
				return err
			}
			return resp.Err()
		}),
	}
	cat.Flags().Int64Var(&offset, "offset", 0, "starting byte")
	cat.Flags().Int64Var(&length, "length", 0, "number of bytes to read")

	put := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "upload a local file, or standard input when <local> is -",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			perm, err := parsePermission(permission)
			if err != nil {
				return err
			}
			if args[0] == "-" {
				return stream(ctx, c, cmd.InOrStdin(), args[1], client.WriterOptions{Permission: perm})
			}
			body, err := openLocal(args[0])
			if err != nil {
				return err
			}
			resp, err := c.Create(ctx, args[1], body, client.CreateOptions{Overwrite: overwrite, Permission: perm})
			if err != nil {
				return err
			}
			return resp.Err()
		}),
	}
	put.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "replace an existing file")
	put.Flags().StringVar(&permission, "permission", "", "octal permission of the new file")

	appendCmd := &cobra.Command{
		Use:   "append <local> <remote>",
		Short: "append a local file, or standard input when <local> is -, to a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			if args[0] == "-" {
				return stream(ctx, c, cmd.InOrStdin(), args[1], client.WriterOptions{Append: true})
			}
			body, err := openLocal(args[0])
			if err != nil {
				return err
			}
			resp, err := c.Append(ctx, args[1], body, 0)
			if err != nil {
				return err
			}
			return resp.Err()
		}),
	}

	mkdir := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "create a directory and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			perm, err := parsePermission(permission)
			if err != nil {
				return err
			}
			return boolean(c.Mkdirs(ctx, args[0], perm))
		}),
	}
	mkdir.Flags().StringVar(&permission, "permission", "", "octal permission of the new directories")

	mv := &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			return boolean(c.Rename(ctx, args[0], args[1]))
		}),
	}

	rm := &cobra.Command{
		Use:   "rm <path>",
		Short: "delete a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			return boolean(c.Delete(ctx, args[0], recursive))
		}),
	}
	rm.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete directories and their content")

	chmod := &cobra.Command{
		Use:   "chmod <mode> <path>",
		Short: "set the permission of a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			perm, err := parsePermission(args[0])
			if err != nil {
				return err
			}
			return errOf(c.SetPermission(ctx, args[1], perm))
		}),
	}

	chown := &cobra.Command{
		Use:   "chown <owner>[:<group>] <path>",
		Short: "set the owner and group of a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			owner, group, _ := strings.Cut(args[0], ":")
			return errOf(c.SetOwner(ctx, args[1], owner, group))
		}),
	}

	setrep := &cobra.Command{
		Use:   "setrep <replication> <path>",
		Short: "set the replication factor of a file",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			replication, err := strconv.ParseInt(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid replication %q: %v", args[0], err)
			}
			return boolean(c.SetReplication(ctx, args[1], int16(replication)))
		}),
	}

	touch := &cobra.Command{
		Use:   "touch <path>",
		Short: "set the modification and access time of a file",
		Args:  cobra.ExactArgs(1),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			t := time.Now()
			if mtime != "" {
				var err error
				if t, err = time.Parse(time.RFC3339, mtime); err != nil {
					return fmt.Errorf("invalid time %q: %v", mtime, err)
				}
			}
			return errOf(c.SetTimes(ctx, args[0], t, t))
		}),
	}
	touch.Flags().StringVar(&mtime, "time", "", "RFC 3339 time to set instead of now")

	ln := &cobra.Command{
		Use:   "ln <target> <link>",
		Short: "create a symbolic link",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			return errOf(c.CreateSymlink(ctx, args[0], args[1], createParent))
		}),
	}
	ln.Flags().BoolVarP(&createParent, "parents", "p", false, "create missing parent directories of the link")

	truncate := &cobra.Command{
		Use:   "truncate <path> <length>",
		Short: "truncate a file",
		Args:  cobra.ExactArgs(2),
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			newLength, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid length %q: %v", args[1], err)
			}
			resp, err := c.Truncate(ctx, args[0], newLength)
			if err != nil {
				return err
			}
			// a false result means block recovery is still in progress
			return resp.Err()
		}),
	}

	healthCmd := &cobra.Command{
		Use:   "health [path...]",
		Short: "check that the service answers and that the given paths exist",
		RunE: a.operation(func(ctx context.Context, c *client.Client, cmd *cobra.Command, args []string) error {
			registry := health.NewRegistry()
			registry.Register("namenode", checks.HomeDirectoryChecker(c))
			for _, p := range args {
				registry.Register("path:"+p, checks.PathChecker(c, p))
			}

			status := registry.CheckStatus(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(status); err != nil {
				return err
			}
			if len(status) > 0 {
				return fmt.Errorf("%d of %d health checks failed", len(status), len(registry.Names()))
			}
			return nil
		}),
	}

	return []*cobra.Command{
		home, ls, stat, du, checksum, cat, put, appendCmd, mkdir, mv, rm,
		chmod, chown, setrep, touch, ln, truncate, healthCmd,
	}
}

// boolean checks the result of an operation answering {"boolean": ...}.
func boolean(resp *client.Response, err error) error {
	if err != nil {
		return err
	}
	return client.DecodeBoolean(resp)
}

func errOf(resp *client.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

func printStatus(w io.Writer, fs client.FileStatus, name string) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
		fs.Mode(), fs.Owner, fs.Group, fs.Length,
		fs.ModTime().UTC().Format(time.RFC3339), name)
}

func parsePermission(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	perm, err := strconv.ParseUint(s, 8, 32)
	if err != nil || perm > 0o1777 {
		return 0, fmt.Errorf("invalid permission %q", s)
	}
	return os.FileMode(perm), nil
}

func openLocal(p string) (transport.BodySource, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	body, err := transport.FileBody(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return body, nil
}

// stream copies r into p through a buffered Writer, removing a partially
// created file on failure.
func stream(ctx context.Context, c *client.Client, r io.Reader, p string, opts client.WriterOptions) error {
	w, err := client.NewWriter(ctx, c, p, opts)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		if !opts.Append {
			// nolint:errcheck
			w.Cancel()
		}
		return err
	}
	return w.Commit()
}
