// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command xipfsctl drives a file-backed XIPFS mount directly, without a
// kernel VFS shim (spec.md §1 names that shim out of scope). It is
// grounded in the teacher's samples/mount_memfs launcher shape — parse
// flags, construct the core, run a command — adapted from "mount through
// the kernel and join" to "format/open/read/write/ls/rm/exec one shot
// against a mount file".
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jacobsa/timeutil"

	"github.com/xipfs/xipfs"
	"github.com/xipfs/xipfs/flash"
)

var (
	fImage    = flag.String("image", "", "Path to the backing mount image file.")
	fPages    = flag.Int("pages", 16, "Page count of the mount image; every command needs the value used at format.")
	fPageSize = flag.Int64("page_size", 4096, "Erase page size in bytes of the mount image; every command needs the value used at format.")
	fWriteBlk = flag.Int64("write_block", 4, "Write-block size in bytes of the mount image.")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: xipfsctl -image PATH [flags] COMMAND [args...]

commands:
  format                        initialize a fresh mount image
  new-file PATH SIZE EXEC       reserve a file (EXEC is 0 or 1)
  write PATH                    write stdin into PATH
  read PATH                     write PATH's contents to stdout
  ls DIR                        list DIR's immediate entries
  rm PATH                       unlink a file
  mkdir PATH                    create an empty directory
  rmdir PATH                    remove an empty directory
  mv OLD NEW                    rename
  stat PATH                     print stat info
  exec PATH [ARGV...]           execv PATH
  statvfs                       print mount-wide space/limits

`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *fImage == "" || flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("xipfsctl: %v", err)
	}
}

func run(cmd string, args []string) error {
	clock := timeutil.RealClock()
	ctx := context.Background()

	if cmd == "format" {
		dev, err := flash.CreateFileBackedDevice(*fImage, *fPages, *fPageSize, *fWriteBlk)
		if err != nil {
			return err
		}
		defer dev.Close()
		mp := xipfs.NewMountPoint(dev, int64(*fPages), clock)
		return mp.Format()
	}

	dev, err := flash.OpenFileBackedDevice(*fImage, *fPages, *fPageSize, *fWriteBlk)
	if err != nil {
		return fmt.Errorf("open image (did you run -format?): %w", err)
	}
	defer dev.Close()

	dir, err := xipfs.Mount(dev, int64(*fPages), clock)
	if err != nil {
		return err
	}
	drv := xipfs.NewDriver(dir, 32)

	switch cmd {
	case "new-file":
		return cmdNewFile(ctx, drv, args)
	case "write":
		return cmdWrite(ctx, drv, args)
	case "read":
		return cmdRead(ctx, drv, args)
	case "ls":
		return cmdLs(ctx, drv, args)
	case "rm":
		return cmdRm(ctx, drv, args)
	case "mkdir":
		return cmdMkdir(ctx, drv, args)
	case "rmdir":
		return cmdRmdir(ctx, drv, args)
	case "mv":
		return cmdMv(ctx, drv, args)
	case "stat":
		return cmdStat(ctx, drv, args)
	case "exec":
		return cmdExec(ctx, drv, args)
	case "statvfs":
		return cmdStatvfs(ctx, drv)
	default:
		usage()
		os.Exit(2)
		return nil
	}
}

func cmdNewFile(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("new-file PATH SIZE EXEC")
	}
	var size int64
	var exec int
	if _, err := fmt.Sscanf(args[1], "%d", &size); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(args[2], "%d", &exec); err != nil {
		return err
	}
	return d.NewFile(ctx, args[0], size, exec != 0)
}

func cmdWrite(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("write PATH")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	id, err := d.Open(ctx, args[0], xipfs.OWronly|xipfs.OCreat)
	if err != nil {
		return err
	}
	defer d.Close(ctx, id)
	if _, err := d.Write(ctx, id, data); err != nil {
		return err
	}
	return d.Fsync(ctx, id)
}

func cmdRead(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("read PATH")
	}
	id, err := d.Open(ctx, args[0], xipfs.ORdonly)
	if err != nil {
		return err
	}
	defer d.Close(ctx, id)

	buf := make([]byte, 4096)
	for {
		n, err := d.Read(ctx, id, buf)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if n == 0 {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	return nil
}

func cmdLs(ctx context.Context, d *xipfs.Driver, args []string) error {
	dirPath := "/"
	if len(args) == 1 {
		dirPath = args[0]
	}
	id, err := d.Opendir(ctx, dirPath)
	if err != nil {
		return err
	}
	defer d.Closedir(ctx, id)

	for {
		name, ok, err := d.Readdir(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Println(name)
	}
}

func cmdRm(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rm PATH")
	}
	return d.Unlink(ctx, args[0])
}

func cmdMkdir(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("mkdir PATH")
	}
	return d.Mkdir(ctx, args[0])
}

func cmdRmdir(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rmdir PATH")
	}
	return d.Rmdir(ctx, args[0])
}

func cmdMv(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("mv OLD NEW")
	}
	return d.Rename(ctx, args[0], args[1])
}

func cmdStat(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("stat PATH")
	}
	st, err := d.Stat(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("path:  %s\nsize:  %d\nexec:  %v\ndir:   %v\nmtime: %s\n",
		st.Path, st.Size, st.Exec, st.IsDir, st.Mtime)
	return nil
}

func cmdExec(ctx context.Context, d *xipfs.Driver, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("exec PATH [ARGV...]")
	}
	argv := args[1:]
	if len(argv) == 0 {
		argv = []string{args[0]}
	}
	res, err := d.Execv(ctx, args[0], argv)
	if err != nil {
		return err
	}
	for _, line := range res.Output {
		fmt.Print(line)
	}
	os.Exit(res.ExitCode)
	return nil
}

func cmdStatvfs(ctx context.Context, d *xipfs.Driver) error {
	st, err := d.Statvfs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("bsize:   %d\nblocks:  %d\nbfree:   %d\nfiles:   %d\nnamemax: %d\n",
		st.Bsize, st.Blocks, st.Bfree, st.Files, st.Namemax)
	return nil
}
