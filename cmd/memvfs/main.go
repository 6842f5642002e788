package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brettbedarf/memvfs/adapters"
	"github.com/brettbedarf/memvfs/config"
	"github.com/brettbedarf/memvfs/filesystem"
	"github.com/brettbedarf/memvfs/internal/util"
	"github.com/brettbedarf/memvfs/server"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose    int
	nodesDef   string
	configPath string
	umount     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "memvfs",
		Short: "In-memory hierarchical filesystem",
		Long: `memvfs keeps a tree of directories and files in memory.

Node definition files (JSON or YAML) describe the initial tree. Every file's
content is copied in once from inline text or a content source (inline,
base64, file, http) and lives only in memory afterwards.`,
		SilenceUsage: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&flags.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	pf.StringVarP(&flags.nodesDef, "nodes", "n", "", "Path to nodes def file (.json, .yaml)")
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to config file (.json, .yaml)")

	mountCmd := &cobra.Command{
		Use:   "mount <mountpoint>",
		Short: "Mount the tree with FUSE and serve it until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd, flags, args[0])
		},
	}
	mountCmd.Flags().BoolVarP(&flags.umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")

	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "Load the nodes def file and print the resulting tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd, flags)
		},
	}

	rootCmd.AddCommand(mountCmd, treeCmd)
	return rootCmd
}

// loadConfig merges the config file, if any, with the verbosity flag
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(flags.configPath); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("verbose") || flags.configPath == "" {
		cfg.Merge(&config.ConfigOverride{LogLvl: &flags.verbose})
	}
	return cfg, nil
}

// newVFS builds the filesystem and loads the nodes def file into it
func newVFS(cmd *cobra.Command, flags *rootFlags, cfg *config.Config, opts ...filesystem.Option) (*server.MemVFS, error) {
	logger := util.GetLogger("main")

	fs, err := server.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if flags.nodesDef == "" {
		logger.Warn().Msg("No nodes file provided")
		return fs, nil
	}
	// Register all built-in adapters
	sources := adapters.NewBuiltinRegistry()
	if err := fs.LoadNodesFile(cmd.Context(), flags.nodesDef, sources); err != nil {
		// partial loads still serve what could be added
		logger.Error().Err(err).Str("nodes", flags.nodesDef).Msg("Failed to load some nodes")
	}
	return fs, nil
}

func runMount(cmd *cobra.Command, flags *rootFlags, mnt string) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Info().Int("verbose", flags.verbose).Str("nodes", flags.nodesDef).Str("mnt", mnt).Msg("MemVFS server initializing")

	// Try unmount if requested
	if flags.umount {
		// we ignore error here if not already mounted
		exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
	}

	fs, err := newVFS(cmd, flags, cfg)
	if err != nil {
		return err
	}
	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	select {
	case err := <-fs.ServeAsync(mnt):
		if err != nil {
			logger.Error().Err(err).Msg("Failed to mount filesystem")
			return err
		}
	case <-ctx.Done():
		logger.Warn().Msg("Received signal before the mount completed")
		return ctx.Err()
	}
	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		fs.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting filesystem")
	case <-unmounted:
		logger.Info().Msg("Filesystem was unmounted externally")
		return nil
	}

	if err := fs.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
		return err
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

func runTree(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	util.InitializeLoggerTo(cmd.ErrOrStderr(), cfg.LogLvl)

	// the printed tree is private to this command
	fs, err := newVFS(cmd, flags, cfg, filesystem.WithRegistry(filesystem.NewRegistry()))
	if err != nil {
		return err
	}
	return fs.View(func(t *filesystem.Tree) error {
		return printTree(cmd.OutOrStdout(), t.Root())
	})
}

// printTree writes one line per node, indented by depth
func printTree(w io.Writer, root *filesystem.Directory) error {
	return filesystem.Walk(root, func(n filesystem.Node, depth int) error {
		name := n.Name()
		if n.Type() == filesystem.DirType {
			name += filesystem.Separator
		}
		_, err := fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), name, humanize.Bytes(uint64(n.Size())))
		return err
	})
}
