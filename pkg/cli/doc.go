/*
Package cli provides command-line utilities for the arbor command.

Output Formatting:

Command results can be written as text, JSON, YAML or CSV:

	formatter, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(formatter).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values implementing TextWriter render their own text output, and values
implementing Table can be written as CSV.

Progress Reporting:

Parsing many files reports progress as files complete:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(files)))
	// each worker calls progress.Increment()
	progress.Finish()

Exit Codes:

ExitCode maps command errors to process exit codes, so scripts can tell a
missing backend from a bad configuration.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
