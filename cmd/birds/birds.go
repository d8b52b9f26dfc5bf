package birds

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/skybound/skybound/internal/buildinfo"
	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/filter"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/listing"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

const notAvailable = "No disponible"

// listFlags holds the repeated filter flags of `birds list`.
type listFlags struct {
	families   []int
	categories []int
	statuses   []int
	habitats   []int
}

// Command creates the birds command group.
func Command(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "birds",
		Short: "Browse the bird catalog",
	}
	cmd.AddCommand(listCommand(settings, info))
	return cmd
}

func listCommand(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List birds, optionally filtered",
		Long: "Fetch every bird and print the ones matching the filters. Values of one " +
			"filter are alternatives; different filters must all match.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			userAgent := settings.Backend.UserAgent
			if userAgent != "" {
				userAgent = info.UserAgent(userAgent)
			}
			client := httpclient.New(httpclient.ConfigFromSettings(settings, userAgent))
			defer client.Close()

			backend := catalog.New(client, logger.Global().Module("catalog"))
			return run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), backend, flags.engine())
		},
	}

	addFilterFlag(cmd.Flags(), &flags.families, filter.Family, "family")
	addFilterFlag(cmd.Flags(), &flags.categories, filter.Category, "seasonal category")
	addFilterFlag(cmd.Flags(), &flags.statuses, filter.Status, "protection status")
	addFilterFlag(cmd.Flags(), &flags.habitats, filter.Habitat, "habitat")

	return cmd
}

// addFilterFlag registers a repeatable id flag named after the dimension,
// matching the gallery query parameters.
func addFilterFlag(fs *pflag.FlagSet, target *[]int, d filter.Dimension, what string) {
	fs.IntSliceVar(target, d.String(), nil, fmt.Sprintf("Show only birds with this %s id, repeatable", what))
}

// engine turns the flags into a filter selection.
func (f listFlags) engine() *filter.Engine {
	e := filter.New()
	for d, ids := range map[filter.Dimension][]int{
		filter.Family:   f.families,
		filter.Category: f.categories,
		filter.Status:   f.statuses,
		filter.Habitat:  f.habitats,
	} {
		for _, id := range ids {
			if !e.IsSelected(d, id) {
				e.Toggle(d, id)
			}
		}
	}
	return e
}

// run loads the gallery lists and prints the birds that pass e. A failed
// reference list falls back to printing ids in its column.
func run(ctx context.Context, out, errOut io.Writer, backend *catalog.Backend, e *filter.Engine) error {
	screen := listing.NewBirdScreen(backend, listing.Options{Log: logger.Global().Module("cli")})
	if err := screen.Load(ctx); err != nil {
		if !screen.Birds.Loaded() {
			return err
		}
		fmt.Fprintf(errOut, "warning: %v\n", err)
	}

	screen.RetainKnown(e)
	names := lookupNames(screen)
	birds := e.Apply(screen.Birds.Items())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOMBRE\tFAMILIA\tCATEGORÍA\tESTATUS\tHÁBITAT\tACTIVA")
	for i := range birds {
		b := &birds[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID,
			b.Name,
			names.family.describe(b.FamilyID),
			names.category.describe(b.CategoryID),
			names.status.describe(b.StatusID),
			names.habitat.describe(b.HabitatID),
			yesNo(b.Active))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d de %d aves\n", len(birds), len(screen.Birds.Items()))
	return nil
}

// descriptions maps reference ids to their descriptions.
type descriptions map[int]string

func (d descriptions) describe(id *int) string {
	if id == nil {
		return notAvailable
	}
	if s, ok := d[*id]; ok && s != "" {
		return s
	}
	return strconv.Itoa(*id)
}

type referenceNames struct {
	family, category, status, habitat descriptions
}

func lookupNames(s *listing.BirdScreen) referenceNames {
	return referenceNames{
		family:   describeAll(s.Families.Items()),
		category: describeAll(s.Categories.Items()),
		status:   describeAll(s.Statuses.Items()),
		habitat:  describeAll(s.Habitats.Items()),
	}
}

func describeAll[T model.ReferenceEntity[T]](items []T) descriptions {
	d := make(descriptions, len(items))
	for _, item := range items {
		d[item.EntityID()] = item.Data().Description
	}
	return d
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
