package artwork_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

type fsFixture struct {
	musicDir  string
	coversDir string
	albumDir  string
	settings  artwork.Settings
}

func newFSFixture(t *testing.T) *fsFixture {
	t.Helper()
	tmpDir := t.TempDir()
	f := &fsFixture{
		musicDir:  filepath.Join(tmpDir, "music"),
		coversDir: filepath.Join(tmpDir, "covers"),
	}
	f.albumDir = filepath.Join(f.musicDir, "Air", "Moon Safari")
	if err := os.MkdirAll(f.albumDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(f.coversDir, 0755); err != nil {
		t.Fatal(err)
	}
	f.settings = artwork.Settings{
		MusicDir:      f.musicDir,
		CoversDir:     f.coversDir,
		ArtLocation:   artwork.LocationHomeCovers,
		CoversEnabled: true,
	}
	return f
}

func (f *fsFixture) resolver() *artwork.LocalResolver {
	return artwork.NewLocalResolver(artwork.FixedSettings(f.settings))
}

func (f *fsFixture) locate() (artwork.Location, string) {
	return f.resolver().Locate("Air/Moon Safari", "Air", "Moon Safari")
}

func TestLocate_NothingFound(t *testing.T) {
	f := newFSFixture(t)

	loc, file := f.locate()
	if loc != artwork.LocationNone || file != "" {
		t.Errorf("Expected (none, \"\"), got (%s, %q)", loc, file)
	}
}

func TestLocate_MissingDirectory(t *testing.T) {
	f := newFSFixture(t)

	loc, file := f.resolver().Locate("Nobody/Nothing", "Nobody", "Nothing")
	if loc != artwork.LocationNone || file != "" {
		t.Errorf("Expected (none, \"\"), got (%s, %q)", loc, file)
	}
}

func TestLocate_HomeCovers(t *testing.T) {
	f := newFSFixture(t)
	want := filepath.Join(f.coversDir, "Air-Moon Safari.jpg")
	writeImage(t, want)

	loc, file := f.locate()
	if loc != artwork.LocationHomeCovers || file != want {
		t.Errorf("Expected (homecovers, %s), got (%s, %s)", want, loc, file)
	}
}

func TestLocate_HomeCoversStripsSlashes(t *testing.T) {
	f := newFSFixture(t)
	want := filepath.Join(f.coversDir, "ACDC-Back in Black.jpg")
	writeImage(t, want)

	_, file := f.resolver().Locate("AC/DC/Back in Black", "AC/DC", "Back in Black")
	if file != want {
		t.Errorf("Expected %s, got %s", want, file)
	}
}

func TestLocate_ConfiguredLocationWins(t *testing.T) {
	f := newFSFixture(t)
	f.settings.ArtLocation = artwork.LocationFolder

	writeImage(t, filepath.Join(f.coversDir, "Air-Moon Safari.jpg"))
	writeImage(t, filepath.Join(f.albumDir, "cover.jpg"))
	folder := filepath.Join(f.albumDir, "folder.jpg")
	writeImage(t, folder)

	loc, file := f.locate()
	if loc != artwork.LocationFolder || file != folder {
		t.Errorf("Expected (folder, %s), got (%s, %s)", folder, loc, file)
	}
}

func TestLocate_ConventionalOrder(t *testing.T) {
	f := newFSFixture(t)
	f.settings.ArtLocation = artwork.LocationCustom
	f.settings.CustomFilename = "missing.jpg"

	album := filepath.Join(f.albumDir, "album.jpg")
	writeImage(t, album)
	writeImage(t, filepath.Join(f.albumDir, "folder.jpg"))
	writeImage(t, filepath.Join(f.albumDir, "front.jpg"))

	loc, file := f.locate()
	if loc != artwork.LocationAlbum || file != album {
		t.Errorf("Expected (album, %s), got (%s, %s)", album, loc, file)
	}
}

func TestLocate_CaseInsensitive(t *testing.T) {
	f := newFSFixture(t)
	actual := filepath.Join(f.albumDir, "Cover.JPG")
	writeImage(t, actual)

	loc, file := f.locate()
	if loc != artwork.LocationCover || file != actual {
		t.Errorf("Expected (cover, %s), got (%s, %s)", actual, loc, file)
	}
}

func TestLocate_CustomOnlyWhenConfigured(t *testing.T) {
	f := newFSFixture(t)
	custom := filepath.Join(f.albumDir, "scan.png")
	writeImage(t, custom)
	writeImage(t, filepath.Join(f.albumDir, "other.jpg"))

	// Not in custom mode: two images, no known names.
	if loc, file := f.locate(); file != "" {
		t.Fatalf("Expected nothing, got (%s, %s)", loc, file)
	}

	f.settings.ArtLocation = artwork.LocationCustom
	f.settings.CustomFilename = "scan.png"
	loc, file := f.locate()
	if loc != artwork.LocationCustom || file != custom {
		t.Errorf("Expected (custom, %s), got (%s, %s)", custom, loc, file)
	}
}

func TestLocate_ConfiguredCustomBeatsFolder(t *testing.T) {
	f := newFSFixture(t)
	custom := filepath.Join(f.albumDir, "scan.png")
	writeImage(t, custom)
	writeImage(t, filepath.Join(f.albumDir, "folder.jpg"))
	f.settings.ArtLocation = artwork.LocationCustom
	f.settings.CustomFilename = "scan.png"

	loc, file := f.locate()
	if loc != artwork.LocationCustom || file != custom {
		t.Errorf("Expected (custom, %s), got (%s, %s)", custom, loc, file)
	}
}

func TestLocate_MiscNames(t *testing.T) {
	f := newFSFixture(t)
	misc := filepath.Join(f.albumDir, "AlbumArtSmall.jpg")
	writeImage(t, misc)
	writeImage(t, filepath.Join(f.albumDir, "booklet.jpg"))

	loc, file := f.locate()
	if loc != artwork.LocationMisc || file != misc {
		t.Errorf("Expected (misc, %s), got (%s, %s)", misc, loc, file)
	}
}

func TestLocate_SingleImage(t *testing.T) {
	f := newFSFixture(t)
	only := filepath.Join(f.albumDir, "scan-001.png")
	writeImage(t, only)
	writeFile(t, filepath.Join(f.albumDir, "01 - La femme d'argent.flac"), []byte("audio"))
	writeFile(t, filepath.Join(f.albumDir, "._scan-001.png"), []byte("resource fork"))

	loc, file := f.locate()
	if loc != artwork.LocationSingle || file != only {
		t.Errorf("Expected (single, %s), got (%s, %s)", only, loc, file)
	}
}

func TestLocate_SingleImageAmbiguous(t *testing.T) {
	f := newFSFixture(t)
	writeImage(t, filepath.Join(f.albumDir, "a.jpg"))
	writeImage(t, filepath.Join(f.albumDir, "b.jpg"))

	if loc, file := f.locate(); file != "" {
		t.Errorf("Expected nothing with two images, got (%s, %s)", loc, file)
	}
}

func TestLocate_DirectoryNamedLikeCover(t *testing.T) {
	f := newFSFixture(t)
	if err := os.MkdirAll(filepath.Join(f.albumDir, "cover.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	if loc, file := f.locate(); file != "" {
		t.Errorf("Directories must not match, got (%s, %s)", loc, file)
	}
}

func TestTargetFile(t *testing.T) {
	f := newFSFixture(t)
	f.settings.CustomFilename = "art.png"
	r := f.resolver()

	tests := []struct {
		loc  artwork.Location
		want string
	}{
		{artwork.LocationHomeCovers, filepath.Join(f.coversDir, "Air-Moon Safari.jpg")},
		{artwork.LocationCover, filepath.Join(f.albumDir, "cover.jpg")},
		{artwork.LocationAlbum, filepath.Join(f.albumDir, "album.jpg")},
		{artwork.LocationFolder, filepath.Join(f.albumDir, "folder.jpg")},
		{artwork.LocationCustom, filepath.Join(f.albumDir, "art.png")},
		{artwork.LocationMisc, ""},
		{artwork.LocationSingle, ""},
	}

	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			if got := r.TargetFile(tt.loc, "Air/Moon Safari", "Air", "Moon Safari"); got != tt.want {
				t.Errorf("TargetFile(%s) = %q, want %q", tt.loc, got, tt.want)
			}
		})
	}
}

func TestRemoteTarget(t *testing.T) {
	f := newFSFixture(t)

	f.settings.ArtLocation = artwork.LocationCover
	if got, want := f.resolver().RemoteTarget("Air/Moon Safari", "Air", "Moon Safari"), filepath.Join(f.albumDir, "cover.jpg"); got != want {
		t.Errorf("RemoteTarget() = %q, want %q", got, want)
	}

	// Custom with no filename falls back to home covers.
	f.settings.ArtLocation = artwork.LocationCustom
	f.settings.CustomFilename = ""
	if got, want := f.resolver().RemoteTarget("Air/Moon Safari", "Air", "Moon Safari"), filepath.Join(f.coversDir, "Air-Moon Safari.jpg"); got != want {
		t.Errorf("RemoteTarget() = %q, want %q", got, want)
	}
}

func TestCandidateTarget(t *testing.T) {
	f := newFSFixture(t)
	want := filepath.Join(f.coversDir, "temp", artwork.ImageNumPlaceholder+".jpg")
	if got := f.resolver().CandidateTarget(); got != want {
		t.Errorf("CandidateTarget() = %q, want %q", got, want)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name    string
		want    artwork.Location
		wantErr bool
	}{
		{"", artwork.LocationHomeCovers, false},
		{"homecovers", artwork.LocationHomeCovers, false},
		{"cover", artwork.LocationCover, false},
		{"album", artwork.LocationAlbum, false},
		{"folder", artwork.LocationFolder, false},
		{"custom", artwork.LocationCustom, false},
		{"misc", artwork.LocationNone, true},
	}

	for _, tt := range tests {
		got, err := artwork.ParseLocation(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocation(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
